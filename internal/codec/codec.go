// Package codec builds and restores a project's single archive file.
//
// The Codec is bound to one Backend for its whole life. Compression adds the
// project files as members; decompression validates the container, then
// extracts. ZIP archives additionally must carry the required member (the
// project's config.json), which is extracted first as a canary.
package codec

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/mcdonaldj/projpack/internal/adapters/osfs"
	"github.com/mcdonaldj/projpack/internal/adapters/tarbz2archiver"
	"github.com/mcdonaldj/projpack/internal/adapters/ziparchiver"
	"github.com/mcdonaldj/projpack/internal/backend"
	"github.com/mcdonaldj/projpack/internal/logging"
	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/safepath"
)

// DefaultRequiredMember is the member every ZIP archive must contain.
const DefaultRequiredMember = "config.json"

// ProjectArchive describes the archive on disk after an operation.
type ProjectArchive struct {
	Path      string
	Format    backend.Backend
	Present   bool
	Size      int64
	FileCount int
}

// Options tunes a Codec. Zero values select the defaults.
type Options struct {
	RequiredMember string
	MaxMemberSize  int64
	Logger         *logging.Logger
}

// Codec compresses and decompresses a project archive.
type Codec struct {
	backend        backend.Backend
	archiver       ports.Archiver
	locator        ports.ArchiveLocator
	files          ports.ProjectFiles
	fs             ports.FileSystem
	log            *logging.Logger
	requiredMember string
}

// New creates a Codec with explicit dependencies.
func New(b backend.Backend, archiver ports.Archiver, locator ports.ArchiveLocator,
	files ports.ProjectFiles, fs ports.FileSystem, opts Options) *Codec {
	required := opts.RequiredMember
	if required == "" {
		required = DefaultRequiredMember
	}
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}
	return &Codec{
		backend:        b,
		archiver:       archiver,
		locator:        locator,
		files:          files,
		fs:             fs,
		log:            log.With("backend", b.String()),
		requiredMember: required,
	}
}

// NewDefault creates a Codec with the production archiver for b.
func NewDefault(b backend.Backend, locator ports.ArchiveLocator, files ports.ProjectFiles, opts Options) *Codec {
	return New(b, ArchiverFor(b, opts.MaxMemberSize), locator, files, osfs.New(), opts)
}

// ArchiverFor returns the production archiver for a backend.
// maxMemberSize <= 0 keeps the adapter's default limit.
func ArchiverFor(b backend.Backend, maxMemberSize int64) ports.Archiver {
	if b == backend.TarBz2 {
		a := tarbz2archiver.New()
		if maxMemberSize > 0 {
			a.MaxMemberSize = maxMemberSize
		}
		return a
	}
	a := ziparchiver.New()
	if maxMemberSize > 0 {
		a.MaxMemberSize = maxMemberSize
	}
	return a
}

// Backend returns the backend this codec was built for.
func (c *Codec) Backend() backend.Backend {
	return c.backend
}

// ArchivePath returns the archive location the codec operates on.
func (c *Codec) ArchivePath() string {
	return c.locator.ArchivePath()
}

// CompressProject writes the current project files, read relative to
// rootDir, into the archive.
func (c *Codec) CompressProject(rootDir string) (*ProjectArchive, error) {
	path := c.locator.ArchivePath()
	files, err := c.files.ProjectFiles()
	if err != nil {
		return nil, fmt.Errorf("listing project files: %w", err)
	}

	log := c.log.With("archive", path)
	log.Debug("compressing project", "files", len(files), "root", rootDir)

	count, err := c.archiver.Compress(path, rootDir, files)
	if err != nil {
		log.Error("compress failed", "error", err.Error())
		return nil, &ArchiveWriteError{Path: path, Backend: c.backend, Err: err}
	}

	result := &ProjectArchive{Path: path, Format: c.backend, FileCount: count}
	if info, err := c.fs.Stat(path); err == nil {
		result.Present = true
		result.Size = info.Size()
	}

	log.Info("project compressed", "files", count, "size", result.Size)
	return result, nil
}

// DecompressProject restores the archive's members into destDir.
//
// The container is validated before anything is written; a failure there
// is an ArchiveCorruptError. Member failures are ArchiveContentErrors.
func (c *Codec) DecompressProject(destDir string) error {
	path := c.locator.ArchivePath()
	selector, selects := c.files.(ports.MemberSelector)

	var files []string
	var err error
	if !selects {
		files, err = c.files.ProjectFiles()
		if err != nil {
			return fmt.Errorf("listing project files: %w", err)
		}
	}

	log := c.log.With("archive", path)

	if err := c.archiver.Validate(path); err != nil {
		log.Error("archive failed validation", "error", err.Error())
		return &ArchiveCorruptError{Path: path, Backend: c.backend, Err: err}
	}

	if selects {
		files, err = c.selectMembers(path, selector)
		if err != nil {
			log.Error("selecting members failed", "error", err.Error())
			return err
		}
	}

	if err := c.fs.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating destination %s: %w", destDir, err)
	}

	switch c.backend {
	case backend.TarBz2:
		err = c.extractTarBz2(path, destDir, files)
	default:
		err = c.extractZip(path, destDir, files)
	}
	if err != nil {
		log.Error("extraction failed", "error", err.Error())
		return err
	}

	log.Info("project decompressed", "dest", destDir, "files", len(files))
	return nil
}

// extractZip runs the canary, confirms every requested member is present,
// then extracts the whole archive.
func (c *Codec) extractZip(path, destDir string, files []string) error {
	if err := c.archiver.Extract(path, destDir, []string{c.requiredMember}); err != nil {
		return &ArchiveContentError{Path: path, Backend: c.backend, Member: c.requiredMember, Err: err}
	}

	if len(files) > 0 {
		missing, err := c.missingMembers(path, files)
		if err != nil {
			return &ArchiveContentError{Path: path, Backend: c.backend, Err: err}
		}
		if len(missing) > 0 {
			return &ArchiveContentError{
				Path:    path,
				Backend: c.backend,
				Member:  missing[0],
				Err:     fmt.Errorf("%w: %d requested members absent", ports.ErrMemberNotFound, len(missing)),
			}
		}
	}

	if err := c.archiver.Extract(path, destDir, nil); err != nil {
		return &ArchiveContentError{Path: path, Backend: c.backend, Err: err}
	}
	return nil
}

// extractTarBz2 extracts the requested members. An empty request
// extracts everything.
func (c *Codec) extractTarBz2(path, destDir string, files []string) error {
	if err := c.archiver.Extract(path, destDir, files); err != nil {
		return &ArchiveContentError{Path: path, Backend: c.backend, Err: err}
	}
	return nil
}

// missingMembers returns the requested names not present in the archive, sorted.
// selectMembers resolves the restore list against the archive's members,
// so a glob-matched file deleted from the working tree is still restored
// and a file created after compress is not requested.
func (c *Codec) selectMembers(path string, selector ports.MemberSelector) ([]string, error) {
	listing, err := c.archiver.List(path)
	if err != nil {
		return nil, &ArchiveContentError{Path: path, Backend: c.backend, Err: err}
	}
	names := make([]string, 0, len(listing))
	for name := range listing {
		names = append(names, name)
	}
	sort.Strings(names)
	files, err := selector.SelectMembers(names)
	if err != nil {
		return nil, fmt.Errorf("selecting members: %w", err)
	}
	return files, nil
}

func (c *Codec) missingMembers(path string, files []string) ([]string, error) {
	listing, err := c.archiver.List(path)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, f := range files {
		name, err := safepath.MemberName(f)
		if err != nil {
			return nil, err
		}
		if _, ok := listing[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// Verify validates the archive without extracting. For ZIP archives the
// required member must also be listed.
func (c *Codec) Verify() error {
	path := c.locator.ArchivePath()
	if err := c.archiver.Validate(path); err != nil {
		return &ArchiveCorruptError{Path: path, Backend: c.backend, Err: err}
	}

	listing, err := c.archiver.List(path)
	if err != nil {
		return &ArchiveContentError{Path: path, Backend: c.backend, Err: err}
	}
	if c.backend == backend.Zip {
		if _, ok := listing[c.requiredMember]; !ok {
			return &ArchiveContentError{Path: path, Backend: c.backend, Member: c.requiredMember, Err: ports.ErrMemberNotFound}
		}
	}
	return nil
}

// List returns the archive's members after validating the container.
func (c *Codec) List() (map[string]ports.FileInfo, error) {
	path := c.locator.ArchivePath()
	if err := c.archiver.Validate(path); err != nil {
		return nil, &ArchiveCorruptError{Path: path, Backend: c.backend, Err: err}
	}
	listing, err := c.archiver.List(path)
	if err != nil {
		return nil, &ArchiveContentError{Path: path, Backend: c.backend, Err: err}
	}
	return listing, nil
}

// Stat reports the archive's on-disk state without opening it.
func (c *Codec) Stat() (*ProjectArchive, error) {
	path := c.locator.ArchivePath()
	result := &ProjectArchive{Path: path, Format: c.backend}
	info, err := c.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return nil, err
	}
	result.Present = true
	result.Size = info.Size()
	return result, nil
}
