package ports

import (
	"time"

	"github.com/mcdonaldj/projpack/internal/config"
)

// TUIArchiveInfo describes the archive on disk for display.
type TUIArchiveInfo struct {
	Path    string
	Backend string
	Present bool
	Size    int64
	Members int
}

// TUIChange is one path that differs between the archive and the working tree.
type TUIChange struct {
	Path        string
	Status      rune // 'M' modified, 'A' added, 'D' deleted
	ArchiveSize int64
	WorkingSize int64
}

// TUIDiffLine is a single line of a file diff.
type TUIDiffLine struct {
	LineNum1 int
	LineNum2 int
	Type     rune
	Content  string
}

// TUIFileDiff is the line diff of one changed path.
type TUIFileDiff struct {
	Path     string
	Lines    []TUIDiffLine
	IsBinary bool
}

// TUIHistoryEntry is one recorded compress run.
type TUIHistoryEntry struct {
	CreatedAt time.Time
	Backend   string
	Size      int64
	FileCount int
	GitHead   string
}

// TUICompressResult contains the result of a compress operation.
type TUICompressResult struct {
	Size      int64
	FileCount int
	Error     error
}

// TUIService provides operations needed by the TUI.
// This abstraction allows the TUI to be tested without real archive operations.
type TUIService interface {
	// LoadConfig loads the project configuration.
	LoadConfig(root string) (*config.Config, error)

	// Archive describes the archive without opening it.
	Archive(cfg *config.Config, root string) (TUIArchiveInfo, error)

	// Changes compares the archive with the working tree.
	Changes(cfg *config.Config, root string) ([]TUIChange, error)

	// FileDiff returns the line diff of one changed path.
	FileDiff(cfg *config.Config, root string, change TUIChange) (*TUIFileDiff, error)

	// History returns the recorded compress runs, newest first.
	History(cfg *config.Config, root string) ([]TUIHistoryEntry, error)

	// Compress adds the project files to the archive.
	Compress(cfg *config.Config, root string) TUICompressResult

	// Verify checks the archive container and checksum.
	Verify(cfg *config.Config, root string) error
}
