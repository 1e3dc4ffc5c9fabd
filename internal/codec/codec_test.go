package codec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcdonaldj/projpack/internal/adapters/osfs"
	"github.com/mcdonaldj/projpack/internal/adapters/tarbz2archiver"
	"github.com/mcdonaldj/projpack/internal/adapters/ziparchiver"
	"github.com/mcdonaldj/projpack/internal/backend"
	"github.com/mcdonaldj/projpack/internal/mocks"
	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/projectfiles"
)

func writeProject(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// newRealCodec builds a codec over the production archiver for b.
func newRealCodec(b backend.Backend, archivePath string, files []string) *Codec {
	return NewDefault(b, &mocks.MockLocator{Path: archivePath}, &mocks.MockProjectFiles{Files: files}, Options{})
}

func TestRoundTripBothBackends(t *testing.T) {
	for _, b := range []backend.Backend{backend.Zip, backend.TarBz2} {
		t.Run(b.String(), func(t *testing.T) {
			tempDir := t.TempDir()
			root := filepath.Join(tempDir, "project")
			files := map[string]string{
				"config.json":    `{"project":"demo"}`,
				"data.db":        strings.Repeat("\x00\x01record", 500),
				"logs/proxy.log": "GET / 200\n",
			}
			writeProject(t, root, files)

			archivePath := filepath.Join(tempDir, "project"+b.Extension())
			c := newRealCodec(b, archivePath, []string{"config.json", "data.db", "logs/proxy.log"})

			archive, err := c.CompressProject(root)
			if err != nil {
				t.Fatalf("CompressProject failed: %v", err)
			}
			if !archive.Present || archive.Size == 0 {
				t.Errorf("archive = %+v, expected present and non-empty", archive)
			}
			if archive.Format != b || archive.FileCount != 3 {
				t.Errorf("archive = %+v", archive)
			}

			dest := filepath.Join(tempDir, "restore")
			if err := c.DecompressProject(dest); err != nil {
				t.Fatalf("DecompressProject failed: %v", err)
			}
			for name, content := range files {
				got, err := os.ReadFile(filepath.Join(dest, name))
				if err != nil {
					t.Errorf("restored %s: %v", name, err)
					continue
				}
				if string(got) != content {
					t.Errorf("restored %s differs from original", name)
				}
			}
		})
	}
}

func TestZipScenarioExactMembers(t *testing.T) {
	tempDir := t.TempDir()
	writeProject(t, tempDir, map[string]string{
		"config.json": "{}",
		"data.db":     "db",
		"unrelated":   "not archived",
	})

	archivePath := filepath.Join(tempDir, "project.zip")
	c := newRealCodec(backend.Zip, archivePath, []string{"config.json", "data.db"})
	if _, err := c.CompressProject(tempDir); err != nil {
		t.Fatalf("CompressProject failed: %v", err)
	}

	listing, err := c.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listing) != 2 {
		t.Errorf("members = %v, expected exactly config.json and data.db", listing)
	}
	for _, name := range []string{"config.json", "data.db"} {
		if _, ok := listing[name]; !ok {
			t.Errorf("member %s missing", name)
		}
	}
}

func TestZipAppendKeepsPreviousMembers(t *testing.T) {
	tempDir := t.TempDir()
	writeProject(t, tempDir, map[string]string{"config.json": "{}", "old.log": "old"})
	archivePath := filepath.Join(tempDir, "project.zip")

	files := &mocks.MockProjectFiles{Files: []string{"config.json", "old.log"}}
	c := NewDefault(backend.Zip, &mocks.MockLocator{Path: archivePath}, files, Options{})
	if _, err := c.CompressProject(tempDir); err != nil {
		t.Fatal(err)
	}

	writeProject(t, tempDir, map[string]string{"new.log": "new"})
	files.Files = []string{"config.json", "new.log"}
	if _, err := c.CompressProject(tempDir); err != nil {
		t.Fatal(err)
	}

	listing, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := listing["old.log"]; !ok {
		t.Error("append removed a pre-existing member")
	}
	if files.Calls != 2 {
		t.Errorf("ProjectFiles called %d times, expected once per call", files.Calls)
	}
}

func TestDecompressZeroByteArchive(t *testing.T) {
	for _, b := range []backend.Backend{backend.Zip, backend.TarBz2} {
		t.Run(b.String(), func(t *testing.T) {
			tempDir := t.TempDir()
			archivePath := filepath.Join(tempDir, "project.zip")
			if err := os.WriteFile(archivePath, nil, 0644); err != nil {
				t.Fatal(err)
			}

			dest := filepath.Join(tempDir, "dest")
			if err := os.MkdirAll(dest, 0755); err != nil {
				t.Fatal(err)
			}

			c := newRealCodec(b, archivePath, []string{"config.json"})
			err := c.DecompressProject(dest)

			var corrupt *ArchiveCorruptError
			if !errors.As(err, &corrupt) {
				t.Fatalf("error = %v, expected ArchiveCorruptError", err)
			}
			if corrupt.Path != archivePath {
				t.Errorf("error path = %q, expected %q", corrupt.Path, archivePath)
			}
			if !strings.Contains(err.Error(), archivePath) {
				t.Errorf("message %q should name the archive", err)
			}
			if names := dirEntries(t, dest); len(names) != 0 {
				t.Errorf("destination not empty: %v", names)
			}
		})
	}
}

func TestDecompressWrongFormatRejected(t *testing.T) {
	tests := []struct {
		name  string
		write backend.Backend
		read  backend.Backend
	}{
		{"zip read as tar.bz2", backend.Zip, backend.TarBz2},
		{"tar.bz2 read as zip", backend.TarBz2, backend.Zip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			root := filepath.Join(tempDir, "project")
			writeProject(t, root, map[string]string{"config.json": "{}"})
			archivePath := filepath.Join(tempDir, "project.archive")

			if _, err := newRealCodec(tt.write, archivePath, []string{"config.json"}).CompressProject(root); err != nil {
				t.Fatalf("CompressProject failed: %v", err)
			}

			dest := filepath.Join(tempDir, "dest")
			err := newRealCodec(tt.read, archivePath, []string{"config.json"}).DecompressProject(dest)

			var corrupt *ArchiveCorruptError
			if !errors.As(err, &corrupt) {
				t.Fatalf("error = %v, expected ArchiveCorruptError", err)
			}
			if corrupt.Backend != tt.read {
				t.Errorf("error backend = %q, expected %q", corrupt.Backend, tt.read)
			}
			if names := dirEntries(t, dest); len(names) != 0 {
				t.Errorf("files extracted from a mismatched archive: %v", names)
			}
		})
	}
}

func TestZipMissingRequiredMember(t *testing.T) {
	tempDir := t.TempDir()
	root := filepath.Join(tempDir, "project")
	writeProject(t, root, map[string]string{"data.db": "db", "app.log": "log"})
	archivePath := filepath.Join(tempDir, "project.zip")

	if _, err := newRealCodec(backend.Zip, archivePath, []string{"data.db", "app.log"}).CompressProject(root); err != nil {
		t.Fatalf("CompressProject failed: %v", err)
	}

	dest := filepath.Join(tempDir, "dest")
	err := newRealCodec(backend.Zip, archivePath, []string{"data.db"}).DecompressProject(dest)

	var content *ArchiveContentError
	if !errors.As(err, &content) {
		t.Fatalf("error = %v, expected ArchiveContentError", err)
	}
	if content.Member != DefaultRequiredMember {
		t.Errorf("member = %q, expected %q", content.Member, DefaultRequiredMember)
	}
	if !errors.Is(err, ports.ErrMemberNotFound) {
		t.Errorf("cause = %v, expected ErrMemberNotFound", err)
	}
	if names := dirEntries(t, dest); len(names) != 0 {
		t.Errorf("members extracted before the canary failed: %v", names)
	}
}

func TestRequiredMemberOverride(t *testing.T) {
	tempDir := t.TempDir()
	writeProject(t, tempDir, map[string]string{"settings.json": "{}"})
	archivePath := filepath.Join(tempDir, "p.zip")

	opts := Options{RequiredMember: "settings.json"}
	c := NewDefault(backend.Zip, &mocks.MockLocator{Path: archivePath}, &mocks.MockProjectFiles{Files: []string{"settings.json"}}, opts)
	if _, err := c.CompressProject(tempDir); err != nil {
		t.Fatal(err)
	}
	if err := c.DecompressProject(filepath.Join(tempDir, "out")); err != nil {
		t.Errorf("DecompressProject with custom canary failed: %v", err)
	}
}

func TestCompressWriteError(t *testing.T) {
	tempDir := t.TempDir()
	writeProject(t, tempDir, map[string]string{"config.json": "{}"})
	archivePath := filepath.Join(tempDir, "project.tar.bz2")

	c := newRealCodec(backend.TarBz2, archivePath, []string{"config.json", "missing.db"})
	_, err := c.CompressProject(tempDir)

	var writeErr *ArchiveWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("error = %v, expected ArchiveWriteError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cause chain lost: %v", err)
	}
	if _, statErr := os.Stat(archivePath); !os.IsNotExist(statErr) {
		t.Error("failed compress left an archive behind")
	}
}

// Mock-driven tests of the dispatch and classification.

func newMockCodec(b backend.Backend) (*Codec, *mocks.MockArchiver, *mocks.MockFileSystem) {
	archiver := mocks.NewMockArchiver()
	fs := mocks.NewMockFileSystem()
	c := New(b, archiver, &mocks.MockLocator{Path: "/p/project.zip"},
		&mocks.MockProjectFiles{Files: []string{"config.json", "data.db"}}, fs, Options{})
	return c, archiver, fs
}

func TestZipDecompressOrder(t *testing.T) {
	c, archiver, _ := newMockCodec(backend.Zip)
	archiver.ListResults["/p/project.zip"] = map[string]ports.FileInfo{
		"config.json": {Size: 2},
		"data.db":     {Size: 2},
	}

	if err := c.DecompressProject("/dest"); err != nil {
		t.Fatalf("DecompressProject failed: %v", err)
	}

	if len(archiver.ValidateCalls) != 1 {
		t.Errorf("Validate called %d times", len(archiver.ValidateCalls))
	}
	if len(archiver.ExtractCalls) != 2 {
		t.Fatalf("Extract called %d times, expected canary then full", len(archiver.ExtractCalls))
	}
	canary := archiver.ExtractCalls[0]
	if len(canary.Members) != 1 || canary.Members[0] != "config.json" {
		t.Errorf("first extract = %+v, expected config.json canary", canary)
	}
	if full := archiver.ExtractCalls[1]; full.Members != nil || full.DestDir != "/dest" {
		t.Errorf("second extract = %+v, expected full extraction to /dest", full)
	}
}

func TestZipRequestedMemberMissing(t *testing.T) {
	c, archiver, _ := newMockCodec(backend.Zip)
	archiver.ListResults["/p/project.zip"] = map[string]ports.FileInfo{"config.json": {Size: 2}}

	err := c.DecompressProject("/dest")
	var content *ArchiveContentError
	if !errors.As(err, &content) || content.Member != "data.db" {
		t.Fatalf("error = %v, expected ArchiveContentError for data.db", err)
	}
	if len(archiver.ExtractCalls) != 1 {
		t.Errorf("full extraction ran despite a missing member")
	}
}

func TestTarBz2DecompressRequestsFileList(t *testing.T) {
	c, archiver, _ := newMockCodec(backend.TarBz2)

	if err := c.DecompressProject("/dest"); err != nil {
		t.Fatalf("DecompressProject failed: %v", err)
	}
	if len(archiver.ExtractCalls) != 1 {
		t.Fatalf("Extract called %d times, expected 1", len(archiver.ExtractCalls))
	}
	if got := archiver.ExtractCalls[0].Members; len(got) != 2 || got[0] != "config.json" || got[1] != "data.db" {
		t.Errorf("members = %v", got)
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("low-level failure")

	tests := []struct {
		name    string
		backend backend.Backend
		setup   func(a *mocks.MockArchiver)
		check   func(t *testing.T, err error)
	}{
		{
			name:    "validate failure is corrupt",
			backend: backend.Zip,
			setup:   func(a *mocks.MockArchiver) { a.Errors["Validate"] = cause },
			check: func(t *testing.T, err error) {
				var e *ArchiveCorruptError
				if !errors.As(err, &e) {
					t.Errorf("error = %v, expected ArchiveCorruptError", err)
				}
			},
		},
		{
			name:    "canary failure is content",
			backend: backend.Zip,
			setup:   func(a *mocks.MockArchiver) { a.ExtractErrors["config.json"] = cause },
			check: func(t *testing.T, err error) {
				var e *ArchiveContentError
				if !errors.As(err, &e) || e.Member != "config.json" {
					t.Errorf("error = %v, expected ArchiveContentError for config.json", err)
				}
			},
		},
		{
			name:    "tar member failure is content",
			backend: backend.TarBz2,
			setup:   func(a *mocks.MockArchiver) { a.Errors["Extract"] = cause },
			check: func(t *testing.T, err error) {
				var e *ArchiveContentError
				if !errors.As(err, &e) {
					t.Errorf("error = %v, expected ArchiveContentError", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, archiver, _ := newMockCodec(tt.backend)
			tt.setup(archiver)

			err := c.DecompressProject("/dest")
			tt.check(t, err)
			if !errors.Is(err, cause) {
				t.Errorf("cause not wrapped: %v", err)
			}
			if !strings.Contains(err.Error(), "/p/project.zip") {
				t.Errorf("message %q should name the archive", err)
			}
		})
	}
}

func TestNoFallbackBetweenBackends(t *testing.T) {
	c, archiver, _ := newMockCodec(backend.TarBz2)
	archiver.Errors["Validate"] = errors.New("not bz2")

	if err := c.DecompressProject("/dest"); err == nil {
		t.Fatal("expected failure")
	}
	if len(archiver.ValidateCalls) != 1 || len(archiver.ExtractCalls) != 0 {
		t.Errorf("validate=%d extract=%d, expected a single attempt", len(archiver.ValidateCalls), len(archiver.ExtractCalls))
	}
}

func TestProjectFilesError(t *testing.T) {
	archiver := mocks.NewMockArchiver()
	c := New(backend.Zip, archiver, &mocks.MockLocator{Path: "/p.zip"},
		&mocks.MockProjectFiles{Err: errors.New("no config")}, mocks.NewMockFileSystem(), Options{})

	if _, err := c.CompressProject("/root"); err == nil {
		t.Error("CompressProject should fail when the file list is unavailable")
	}
	if err := c.DecompressProject("/dest"); err == nil {
		t.Error("DecompressProject should fail when the file list is unavailable")
	}
	if len(archiver.CompressCalls) != 0 || len(archiver.ValidateCalls) != 0 {
		t.Error("archiver should not be touched")
	}
}

func TestCompressPassesRootAndFiles(t *testing.T) {
	c, archiver, fs := newMockCodec(backend.Zip)
	fs.Files["/p/project.zip"] = []byte("PK....")

	archive, err := c.CompressProject("/p")
	if err != nil {
		t.Fatalf("CompressProject failed: %v", err)
	}
	call := archiver.CompressCalls[0]
	if call.ArchivePath != "/p/project.zip" || call.RootDir != "/p" || len(call.Files) != 2 {
		t.Errorf("Compress call = %+v", call)
	}
	if !archive.Present || archive.Size != 6 {
		t.Errorf("archive = %+v", archive)
	}
}

func TestVerify(t *testing.T) {
	c, archiver, _ := newMockCodec(backend.Zip)
	if err := c.Verify(); err == nil {
		t.Error("Verify should fail when the zip lacks the required member")
	}

	archiver.ListResults["/p/project.zip"] = map[string]ports.FileInfo{"config.json": {}}
	if err := c.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	tarCodec, tarArchiver, _ := newMockCodec(backend.TarBz2)
	if err := tarCodec.Verify(); err != nil {
		t.Errorf("tar Verify without canary failed: %v", err)
	}
	tarArchiver.Errors["Validate"] = errors.New("bad")
	var corrupt *ArchiveCorruptError
	if err := tarCodec.Verify(); !errors.As(err, &corrupt) {
		t.Errorf("error = %v, expected ArchiveCorruptError", err)
	}
}

func TestStat(t *testing.T) {
	c, _, fs := newMockCodec(backend.Zip)

	archive, err := c.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if archive.Present {
		t.Error("absent archive reported present")
	}

	fs.Files["/p/project.zip"] = []byte("12345")
	archive, _ = c.Stat()
	if !archive.Present || archive.Size != 5 {
		t.Errorf("archive = %+v", archive)
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("eof")
	corrupt := (&ArchiveCorruptError{Path: "/a.zip", Backend: backend.Zip, Err: cause}).Error()
	content := (&ArchiveContentError{Path: "/a.zip", Backend: backend.Zip, Member: "config.json", Err: cause}).Error()
	write := (&ArchiveWriteError{Path: "/a.zip", Backend: backend.Zip, Err: cause}).Error()

	if !strings.Contains(corrupt, "unreadable zip container") {
		t.Errorf("corrupt message = %q", corrupt)
	}
	if !strings.Contains(content, "member config.json") {
		t.Errorf("content message = %q", content)
	}
	for _, msg := range []string{corrupt, content, write} {
		if !strings.Contains(msg, "/a.zip") {
			t.Errorf("message %q does not name the archive", msg)
		}
	}
}

func TestArchiverFor(t *testing.T) {
	z, ok := ArchiverFor(backend.Zip, 0).(*ziparchiver.ZipArchiver)
	if !ok {
		t.Fatal("zip backend should use the zip archiver")
	}
	if z.MaxMemberSize != ziparchiver.New().MaxMemberSize {
		t.Errorf("MaxMemberSize = %d, expected adapter default", z.MaxMemberSize)
	}

	tb, ok := ArchiverFor(backend.TarBz2, 1024).(*tarbz2archiver.TarBz2Archiver)
	if !ok {
		t.Fatal("tar.bz2 backend should use the tar.bz2 archiver")
	}
	if tb.MaxMemberSize != 1024 {
		t.Errorf("MaxMemberSize = %d, expected 1024", tb.MaxMemberSize)
	}
}

func TestDecompressRestoresDeletedGlobMember(t *testing.T) {
	for _, b := range []backend.Backend{backend.Zip, backend.TarBz2} {
		t.Run(b.String(), func(t *testing.T) {
			tempDir := t.TempDir()
			root := filepath.Join(tempDir, "project")
			writeProject(t, root, map[string]string{
				"config.json": "{}",
				"data.db":     "rows",
				"proxy.log":   "GET / 200\n",
			})

			archivePath := filepath.Join(tempDir, "project"+b.Extension())
			provider := projectfiles.New(osfs.New(), root, []string{"config.json", "data.db", "*.log"})
			c := NewDefault(b, &mocks.MockLocator{Path: archivePath}, provider, Options{})

			if _, err := c.CompressProject(root); err != nil {
				t.Fatalf("CompressProject failed: %v", err)
			}

			if err := os.Remove(filepath.Join(root, "proxy.log")); err != nil {
				t.Fatal(err)
			}
			writeProject(t, root, map[string]string{"new.log": "created later"})

			if err := c.DecompressProject(root); err != nil {
				t.Fatalf("DecompressProject failed: %v", err)
			}

			got, err := os.ReadFile(filepath.Join(root, "proxy.log"))
			if err != nil {
				t.Fatalf("proxy.log not restored: %v", err)
			}
			if string(got) != "GET / 200\n" {
				t.Errorf("proxy.log = %q", got)
			}
			if got, _ := os.ReadFile(filepath.Join(root, "new.log")); string(got) != "created later" {
				t.Errorf("new.log = %q, expected untouched", got)
			}
		})
	}
}

func TestDecompressSelectsFromArchiveListing(t *testing.T) {
	c, archiver, _ := newMockCodec(backend.TarBz2)
	c.files = projectfiles.New(mocks.NewMockFileSystem(), "/p", []string{"config.json", "*.log"})
	archiver.ListResults["/p/project.zip"] = map[string]ports.FileInfo{
		"config.json": {},
		"b.log":       {},
		"a.log":       {},
		"data.db":     {},
	}

	if err := c.DecompressProject("/restore"); err != nil {
		t.Fatalf("DecompressProject failed: %v", err)
	}
	if len(archiver.ExtractCalls) != 1 {
		t.Fatalf("Extract calls = %d, expected 1", len(archiver.ExtractCalls))
	}
	got := strings.Join(archiver.ExtractCalls[0].Members, ",")
	if got != "config.json,a.log,b.log" {
		t.Errorf("members = %s, expected config.json,a.log,b.log", got)
	}
}

func TestDecompressTruncatedTarBz2(t *testing.T) {
	for _, files := range [][]string{{"config.json", "data.db"}, nil} {
		tempDir := t.TempDir()
		root := filepath.Join(tempDir, "project")
		writeProject(t, root, map[string]string{
			"config.json": "{}",
			"data.db":     strings.Repeat("row 0123456789 abcdef\n", 8000),
		})

		archivePath := filepath.Join(tempDir, "project.tar.bz2")
		if _, err := newRealCodec(backend.TarBz2, archivePath, []string{"config.json", "data.db"}).CompressProject(root); err != nil {
			t.Fatalf("CompressProject failed: %v", err)
		}
		data, _ := os.ReadFile(archivePath)
		if err := os.WriteFile(archivePath, data[:len(data)*2/3], 0644); err != nil {
			t.Fatal(err)
		}

		dest := filepath.Join(tempDir, "restore")
		err := newRealCodec(backend.TarBz2, archivePath, files).DecompressProject(dest)
		var corrupt *ArchiveCorruptError
		if !errors.As(err, &corrupt) {
			t.Errorf("files %v: error = %v, expected ArchiveCorruptError", files, err)
		}
		if names := dirEntries(t, dest); len(names) != 0 {
			t.Errorf("files %v: partial restore wrote %v", files, names)
		}
	}
}
