package codec

import (
	"fmt"

	"github.com/mcdonaldj/projpack/internal/backend"
)

// ArchiveWriteError reports a failure while adding members during compression.
type ArchiveWriteError struct {
	Path    string
	Backend backend.Backend
	Err     error
}

func (e *ArchiveWriteError) Error() string {
	return fmt.Sprintf("writing %s archive %s: %v", e.Backend, e.Path, e.Err)
}

func (e *ArchiveWriteError) Unwrap() error { return e.Err }

// ArchiveCorruptError reports an archive that failed container-level
// validation. Nothing was extracted.
type ArchiveCorruptError struct {
	Path    string
	Backend backend.Backend
	Err     error
}

func (e *ArchiveCorruptError) Error() string {
	return fmt.Sprintf("archive %s corrupted: unreadable %s container: %v", e.Path, e.Backend, e.Err)
}

func (e *ArchiveCorruptError) Unwrap() error { return e.Err }

// ArchiveContentError reports a structurally valid archive whose members
// could not be read or extracted. Member is set when a single member is
// known to be at fault.
type ArchiveContentError struct {
	Path    string
	Backend backend.Backend
	Member  string
	Err     error
}

func (e *ArchiveContentError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("archive %s contents corrupted: member %s unreadable: %v", e.Path, e.Member, e.Err)
	}
	return fmt.Sprintf("archive %s contents corrupted: %v", e.Path, e.Err)
}

func (e *ArchiveContentError) Unwrap() error { return e.Err }
