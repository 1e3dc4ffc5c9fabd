package ports

import "errors"

// Archiver abstracts one archive format (container + compression).
// Production code uses the ziparchiver and tarbz2archiver adapters;
// tests use MockArchiver.
type Archiver interface {
	// Compress writes files into the archive at archivePath.
	// Each entry of files is a path relative to rootDir and becomes the
	// member name. Returns the number of members written.
	Compress(archivePath, rootDir string, files []string) (fileCount int, err error)

	// Validate checks the container's magic number and structure
	// without extracting anything.
	Validate(archivePath string) error

	// Extract restores the named members into destDir.
	// An empty members list extracts every member. All requested members
	// must be present or nothing is extracted.
	Extract(archivePath, destDir string, members []string) error

	// List returns a map of member names to their info.
	List(archivePath string) (map[string]FileInfo, error)
}

// FileInfo contains metadata about a member in an archive.
type FileInfo struct {
	Size  int64
	CRC32 uint32 // zero when the format does not record one
}

// Errors returned by archivers, wrapped with the member name.
var (
	ErrMemberNotFound = errors.New("member not found in archive")
	ErrUnsafePath     = errors.New("unsafe member path")
	ErrMemberTooLarge = errors.New("member exceeds size limit")
	ErrUnsupported    = errors.New("unsupported member type")
)
