// Package session wires a project root, its config and the archive codec.
package session

import (
	"fmt"
	"path/filepath"

	"github.com/mcdonaldj/projpack/internal/adapters/execgit"
	"github.com/mcdonaldj/projpack/internal/adapters/osfs"
	"github.com/mcdonaldj/projpack/internal/backend"
	"github.com/mcdonaldj/projpack/internal/codec"
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/logging"
	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/projectfiles"
)

// ArchiverFactory builds the archiver for a backend.
type ArchiverFactory func(b backend.Backend, maxMemberSize int64) ports.Archiver

// Deps are the injectable collaborators of a session.
type Deps struct {
	FS          ports.FileSystem
	Git         ports.GitClient
	ArchiverFor ArchiverFactory
	Logger      *logging.Logger
}

// DefaultDeps returns production dependencies.
func DefaultDeps(log *logging.Logger) Deps {
	if log == nil {
		log = logging.NopLogger()
	}
	return Deps{
		FS:          osfs.New(),
		Git:         execgit.New(),
		ArchiverFor: codec.ArchiverFor,
		Logger:      log,
	}
}

// Session is one project root bound to its codec.
type Session struct {
	Root   string
	Config *config.Config
	Codec  *codec.Codec
	Deps   Deps
}

// Open resolves the backend from cfg and builds the codec for root.
func Open(root string, cfg *config.Config, deps Deps) (*Session, error) {
	absRoot, err := filepath.Abs(config.ExpandPath(root))
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	b, err := cfg.ResolveBackend()
	if err != nil {
		return nil, err
	}

	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	if deps.ArchiverFor == nil {
		deps.ArchiverFor = codec.ArchiverFor
	}

	files := projectfiles.New(deps.FS, absRoot, cfg.Files)
	c := codec.New(b, deps.ArchiverFor(b, cfg.MaxMemberSize), cfg.Locator(absRoot), files, deps.FS, codec.Options{
		RequiredMember: cfg.RequiredMember,
		MaxMemberSize:  cfg.MaxMemberSize,
		Logger:         deps.Logger,
	})

	return &Session{
		Root:   absRoot,
		Config: cfg,
		Codec:  c,
		Deps:   deps,
	}, nil
}

// ArchivePath returns the archive location of the session.
func (s *Session) ArchivePath() string {
	return s.Codec.ArchivePath()
}
