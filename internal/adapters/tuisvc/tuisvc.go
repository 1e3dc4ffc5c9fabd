// Package tuisvc provides the real implementation of ports.TUIService.
package tuisvc

import (
	"github.com/mcdonaldj/projpack/internal/backup"
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/recovery"
	"github.com/mcdonaldj/projpack/internal/session"
	"github.com/mcdonaldj/projpack/internal/status"
)

// Service implements ports.TUIService on top of the backup, recovery and
// status services.
type Service struct {
	deps     session.Deps
	backup   *backup.Service
	recovery *recovery.Service
	status   *status.Service
}

// New creates a TUI service with the given dependencies.
func New(deps session.Deps) *Service {
	return &Service{
		deps:     deps,
		backup:   backup.NewService(deps),
		recovery: recovery.NewService(deps),
		status:   status.NewService(deps),
	}
}

// LoadConfig loads the project configuration.
func (s *Service) LoadConfig(root string) (*config.Config, error) {
	return config.Load(root)
}

// Archive describes the archive on disk.
func (s *Service) Archive(cfg *config.Config, root string) (ports.TUIArchiveInfo, error) {
	sess, err := session.Open(root, cfg, s.deps)
	if err != nil {
		return ports.TUIArchiveInfo{}, err
	}
	archive, err := sess.Codec.Stat()
	if err != nil {
		return ports.TUIArchiveInfo{}, err
	}

	info := ports.TUIArchiveInfo{
		Path:    archive.Path,
		Backend: archive.Format.String(),
		Present: archive.Present,
		Size:    archive.Size,
	}
	if archive.Present {
		if listing, err := sess.Codec.List(); err == nil {
			info.Members = len(listing)
		}
	}
	return info, nil
}

// Changes compares the archive with the working tree.
func (s *Service) Changes(cfg *config.Config, root string) ([]ports.TUIChange, error) {
	result, err := s.status.Compare(cfg, root)
	if err != nil {
		return nil, err
	}
	changes := make([]ports.TUIChange, len(result.Changes))
	for i, c := range result.Changes {
		changes[i] = ports.TUIChange{
			Path:        c.Path,
			Status:      c.Status,
			ArchiveSize: c.ArchiveSize,
			WorkingSize: c.WorkingSize,
		}
	}
	return changes, nil
}

// FileDiff returns the line diff of one changed path.
func (s *Service) FileDiff(cfg *config.Config, root string, change ports.TUIChange) (*ports.TUIFileDiff, error) {
	result, err := s.status.FileDiff(cfg, root, status.FileChange{
		Path:        change.Path,
		Status:      change.Status,
		ArchiveSize: change.ArchiveSize,
		WorkingSize: change.WorkingSize,
	})
	if err != nil {
		return nil, err
	}

	diff := &ports.TUIFileDiff{Path: result.Path, IsBinary: result.IsBinary}
	for _, l := range result.Lines {
		diff.Lines = append(diff.Lines, ports.TUIDiffLine{
			LineNum1: l.LineNum1,
			LineNum2: l.LineNum2,
			Type:     l.Type,
			Content:  l.Content,
		})
	}
	return diff, nil
}

// History returns the recorded compress runs, newest first.
func (s *Service) History(cfg *config.Config, root string) ([]ports.TUIHistoryEntry, error) {
	entries, err := s.recovery.History(cfg, root)
	if err != nil {
		return nil, err
	}

	result := make([]ports.TUIHistoryEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, ports.TUIHistoryEntry{
			CreatedAt: e.CreatedAt,
			Backend:   e.Backend,
			Size:      e.SizeBytes,
			FileCount: e.FileCount,
			GitHead:   e.GitHead,
		})
	}

	// Reverse so newest is first
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

// Compress adds the project files to the archive.
func (s *Service) Compress(cfg *config.Config, root string) ports.TUICompressResult {
	r := s.backup.Compress(cfg, root)
	return ports.TUICompressResult{Size: r.Size, FileCount: r.FileCount, Error: r.Error}
}

// Verify checks the archive container and checksum.
func (s *Service) Verify(cfg *config.Config, root string) error {
	_, err := s.recovery.Verify(cfg, root)
	return err
}

// Compile-time check that Service implements ports.TUIService.
var _ ports.TUIService = (*Service)(nil)
