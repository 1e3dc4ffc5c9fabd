// Package recovery restores a project from its archive and checks archive
// integrity against the manifest.
package recovery

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mcdonaldj/projpack/internal/codec"
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/logging"
	"github.com/mcdonaldj/projpack/internal/manifest"
	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/session"
)

// ErrChecksumMismatch means the archive differs from the last one recorded.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// RecoverOptions configures a recovery operation.
type RecoverOptions struct {
	Root         string // project root holding the config
	Dest         string // extraction target, empty for Root
	SkipChecksum bool   // do not compare against the manifest
}

// Member is one archive member for display.
type Member struct {
	Name  string
	Size  int64
	CRC32 uint32
}

// Service provides recovery operations with injected dependencies.
type Service struct {
	deps session.Deps
}

// NewService creates a new recovery service with the given dependencies.
func NewService(deps session.Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	return &Service{deps: deps}
}

// NewDefaultService creates a recovery service with real production dependencies.
func NewDefaultService() *Service {
	return NewService(session.DefaultDeps(nil))
}

// checkChecksum compares the archive with the latest manifest entry.
// Archives without a manifest (e.g. transported alone) pass.
func (s *Service) checkChecksum(archivePath string) (bool, error) {
	m, err := manifest.Load(s.deps.FS, archivePath)
	if err != nil {
		return false, fmt.Errorf("loading manifest: %w", err)
	}
	entry := m.Latest()
	if entry == nil {
		return false, nil
	}

	actual, err := manifest.ComputeSHA256(s.deps.FS, archivePath)
	if err != nil {
		return false, err
	}
	if actual != entry.SHA256 {
		return true, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, entry.SHA256, actual)
	}
	return true, nil
}

// Verify validates the archive container and, when a manifest exists,
// its checksum. It reports whether a checksum was compared.
func (s *Service) Verify(cfg *config.Config, root string) (bool, error) {
	sess, err := session.Open(root, cfg, s.deps)
	if err != nil {
		return false, err
	}

	if err := sess.Codec.Verify(); err != nil {
		return false, err
	}

	checked, err := s.checkChecksum(sess.ArchivePath())
	if err != nil {
		return checked, &codec.ArchiveCorruptError{Path: sess.ArchivePath(), Backend: sess.Codec.Backend(), Err: err}
	}
	return checked, nil
}

// Recover restores the project files from the archive.
func (s *Service) Recover(cfg *config.Config, opts RecoverOptions) error {
	sess, err := session.Open(opts.Root, cfg, s.deps)
	if err != nil {
		return err
	}

	dest := opts.Dest
	if dest == "" {
		dest = sess.Root
	}

	if !opts.SkipChecksum {
		if _, err := s.checkChecksum(sess.ArchivePath()); err != nil {
			if errors.Is(err, ErrChecksumMismatch) {
				return &codec.ArchiveCorruptError{Path: sess.ArchivePath(), Backend: sess.Codec.Backend(), Err: err}
			}
			// Unreadable archive or manifest: let the codec classify it.
			s.deps.Logger.Warn("checksum skipped", "archive", sess.ArchivePath(), "error", err.Error())
		}
	}

	return sess.Codec.DecompressProject(dest)
}

// ListMembers returns the archive members sorted by name.
func (s *Service) ListMembers(cfg *config.Config, root string) ([]Member, error) {
	sess, err := session.Open(root, cfg, s.deps)
	if err != nil {
		return nil, err
	}

	listing, err := sess.Codec.List()
	if err != nil {
		return nil, err
	}
	return sortMembers(listing), nil
}

// History returns the manifest entries recorded for the archive, oldest first.
func (s *Service) History(cfg *config.Config, root string) ([]manifest.Entry, error) {
	sess, err := session.Open(root, cfg, s.deps)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(s.deps.FS, sess.ArchivePath())
	if err != nil {
		return nil, err
	}
	return m.Entries, nil
}

func sortMembers(listing map[string]ports.FileInfo) []Member {
	members := make([]Member, 0, len(listing))
	for name, info := range listing {
		members = append(members, Member{Name: name, Size: info.Size, CRC32: info.CRC32})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members
}
