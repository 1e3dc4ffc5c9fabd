package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcdonaldj/projpack/internal/adapters/osfs"
	"github.com/mcdonaldj/projpack/internal/codec"
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/manifest"
	"github.com/mcdonaldj/projpack/internal/mocks"
	"github.com/mcdonaldj/projpack/internal/session"
)

func createTestProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	return root
}

func testConfig(t *testing.T, backendName, archive string) *config.Config {
	t.Helper()
	cfg, err := config.DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Backend = backendName
	cfg.Archive = archive
	return cfg
}

func testDeps(git *mocks.MockGitClient) session.Deps {
	return session.Deps{
		FS:          osfs.New(),
		Git:         git,
		ArchiverFor: codec.ArchiverFor,
	}
}

func TestCompressWritesArchiveAndManifest(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		archive string
	}{
		{"zip", "zip", "project.zip"},
		{"tar.bz2", "tar.bz2", "project.tar.bz2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := createTestProject(t, map[string]string{
				"config.json": `{"v":1}`,
				"data.db":     "rows",
				"proxy.log":   "log line",
				"ignored.txt": "not in the file list",
			})

			git := mocks.NewMockGitClient()
			git.Repos[root] = true
			git.Heads[root] = "abc123def456"

			fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			svc := NewService(testDeps(git)).WithClock(func() time.Time { return fixed })

			result := svc.Compress(testConfig(t, tt.backend, tt.archive), root)
			if result.Error != nil {
				t.Fatalf("Compress failed: %v", result.Error)
			}

			archivePath := filepath.Join(root, tt.archive)
			if result.Archive != archivePath {
				t.Errorf("Archive = %q, expected %q", result.Archive, archivePath)
			}
			if result.Backend != tt.backend {
				t.Errorf("Backend = %q, expected %q", result.Backend, tt.backend)
			}
			if result.FileCount != 3 {
				t.Errorf("FileCount = %d, expected 3", result.FileCount)
			}
			if result.GitHead != "abc123def456" {
				t.Errorf("GitHead = %q", result.GitHead)
			}

			m, err := manifest.Load(osfs.New(), archivePath)
			if err != nil {
				t.Fatalf("loading manifest: %v", err)
			}
			entry := m.Latest()
			if entry == nil {
				t.Fatal("no manifest entry written")
			}
			if entry.SHA256 != result.SHA256 || len(entry.SHA256) != 64 {
				t.Errorf("manifest checksum = %q, result checksum = %q", entry.SHA256, result.SHA256)
			}
			if !entry.CreatedAt.Equal(fixed) {
				t.Errorf("CreatedAt = %v, expected %v", entry.CreatedAt, fixed)
			}
			if m.Source != root {
				t.Errorf("Source = %q, expected %q", m.Source, root)
			}
			want := []string{"config.json", "data.db", "proxy.log"}
			if len(entry.Files) != len(want) {
				t.Fatalf("Files = %v, expected %v", entry.Files, want)
			}
			for i, name := range want {
				if entry.Files[i] != name {
					t.Errorf("Files[%d] = %q, expected %q", i, entry.Files[i], name)
				}
			}
		})
	}
}

func TestCompressAppendsManifestEntries(t *testing.T) {
	root := createTestProject(t, map[string]string{"config.json": "{}", "data.db": "v1"})
	svc := NewService(testDeps(mocks.NewMockGitClient()))
	cfg := testConfig(t, "zip", "project.zip")

	if r := svc.Compress(cfg, root); r.Error != nil {
		t.Fatal(r.Error)
	}
	if err := os.WriteFile(filepath.Join(root, "data.db"), []byte("v2 with more rows"), 0644); err != nil {
		t.Fatal(err)
	}
	second := svc.Compress(cfg, root)
	if second.Error != nil {
		t.Fatal(second.Error)
	}

	m, err := manifest.Load(osfs.New(), filepath.Join(root, "project.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("entries = %d, expected 2", len(m.Entries))
	}
	if m.Latest().SHA256 != second.SHA256 {
		t.Error("latest entry does not match the second compress")
	}
	if m.Entries[0].SHA256 == m.Entries[1].SHA256 {
		t.Error("changed content should produce a different checksum")
	}
	if m.Latest().GitHead != "" {
		t.Errorf("GitHead = %q for a non-repo root", m.Latest().GitHead)
	}
}

func TestCompressMissingFile(t *testing.T) {
	root := createTestProject(t, map[string]string{"config.json": "{}"})
	svc := NewService(testDeps(mocks.NewMockGitClient()))

	result := svc.Compress(testConfig(t, "zip", "project.zip"), root)

	var writeErr *codec.ArchiveWriteError
	if !errors.As(result.Error, &writeErr) {
		t.Fatalf("error = %v, expected ArchiveWriteError", result.Error)
	}
	if _, err := os.Stat(manifest.ManifestPath(filepath.Join(root, "project.zip"))); !os.IsNotExist(err) {
		t.Error("manifest written for a failed compress")
	}
}

func TestCompressInvalidBackend(t *testing.T) {
	svc := NewService(testDeps(mocks.NewMockGitClient()))
	result := svc.Compress(testConfig(t, "rar", "project.rar"), t.TempDir())
	if result.Error == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestNewServiceDefaultsLogger(t *testing.T) {
	svc := NewService(session.Deps{})
	if svc.deps.Logger == nil {
		t.Error("NewService should default the logger")
	}
	if NewDefaultService() == nil {
		t.Error("NewDefaultService returned nil")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatSize(tt.bytes); got != tt.want {
				t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
