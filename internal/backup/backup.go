// Package backup compresses a project into its archive and records the
// result in the archive's manifest.
package backup

import (
	"fmt"
	"sort"
	"time"

	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/logging"
	"github.com/mcdonaldj/projpack/internal/manifest"
	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/session"
)

// BackupResult contains the result of compressing a project.
type BackupResult struct {
	Archive   string
	Backend   string
	Size      int64
	FileCount int
	SHA256    string
	GitHead   string
	Error     error
}

// Service provides compression with injected dependencies.
type Service struct {
	deps session.Deps
	now  func() time.Time
}

// NewService creates a new backup service with the given dependencies.
func NewService(deps session.Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	return &Service{deps: deps, now: time.Now}
}

// NewDefaultService creates a backup service with real production dependencies.
func NewDefaultService() *Service {
	return NewService(session.DefaultDeps(nil))
}

// WithClock overrides the timestamp source for manifest entries.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Compress archives the project at root and appends a manifest entry.
func (s *Service) Compress(cfg *config.Config, root string) BackupResult {
	sess, err := session.Open(root, cfg, s.deps)
	if err != nil {
		return BackupResult{Error: err}
	}

	archivePath := sess.ArchivePath()
	result := BackupResult{Archive: archivePath, Backend: sess.Codec.Backend().String()}

	archive, err := sess.Codec.CompressProject(sess.Root)
	if err != nil {
		result.Error = err
		return result
	}

	checksum, err := manifest.ComputeSHA256(s.deps.FS, archivePath)
	if err != nil {
		result.Error = fmt.Errorf("computing checksum: %w", err)
		return result
	}

	m, err := manifest.Load(s.deps.FS, archivePath)
	if err != nil {
		result.Error = fmt.Errorf("loading manifest: %w", err)
		return result
	}
	m.Source = sess.Root

	entry := manifest.Entry{
		Backend:   archive.Format.String(),
		SHA256:    checksum,
		SizeBytes: archive.Size,
		CreatedAt: s.now(),
		FileCount: archive.FileCount,
	}
	if listing, err := sess.Codec.List(); err == nil {
		entry.Files = sortedNames(listing)
	}
	if s.deps.Git != nil && s.deps.Git.IsRepo(sess.Root) {
		entry.GitHead = s.deps.Git.GetHead(sess.Root)
	}

	m.Add(entry)
	m.Trim(manifest.DefaultKeepLast)
	if err := m.Save(s.deps.FS, archivePath); err != nil {
		result.Error = fmt.Errorf("saving manifest: %w", err)
		return result
	}

	result.Size = archive.Size
	result.FileCount = archive.FileCount
	result.SHA256 = checksum
	result.GitHead = entry.GitHead
	return result
}

func sortedNames(listing map[string]ports.FileInfo) []string {
	names := make([]string, 0, len(listing))
	for name := range listing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatSize formats bytes as human-readable
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
