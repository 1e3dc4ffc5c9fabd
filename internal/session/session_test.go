package session

import (
	"path/filepath"
	"testing"

	"github.com/mcdonaldj/projpack/internal/backend"
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/mocks"
	"github.com/mcdonaldj/projpack/internal/ports"
)

func TestOpenUsesConfiguredBackend(t *testing.T) {
	cfg, _ := config.DefaultConfig()
	cfg.Backend = "tar.bz2"
	cfg.Archive = "state.tar.bz2"

	var gotBackend backend.Backend
	var gotMax int64
	deps := Deps{
		FS:  mocks.NewMockFileSystem(),
		Git: mocks.NewMockGitClient(),
		ArchiverFor: func(b backend.Backend, max int64) ports.Archiver {
			gotBackend, gotMax = b, max
			return mocks.NewMockArchiver()
		},
	}

	root := t.TempDir()
	s, err := Open(root, cfg, deps)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if gotBackend != backend.TarBz2 {
		t.Errorf("archiver built for %q, expected tar.bz2", gotBackend)
	}
	if gotMax != cfg.MaxMemberSize {
		t.Errorf("max member size = %d", gotMax)
	}
	if s.Codec.Backend() != backend.TarBz2 {
		t.Errorf("codec backend = %q", s.Codec.Backend())
	}
	if want := filepath.Join(root, "state.tar.bz2"); s.ArchivePath() != want {
		t.Errorf("ArchivePath() = %q, expected %q", s.ArchivePath(), want)
	}
	if s.Deps.Logger == nil {
		t.Error("Open should default the logger")
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg, _ := config.DefaultConfig()
	cfg.Backend = "7z"

	if _, err := Open(t.TempDir(), cfg, DefaultDeps(nil)); err == nil {
		t.Error("Open should fail for an unknown backend")
	}
}
