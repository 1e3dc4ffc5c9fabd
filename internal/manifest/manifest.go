package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mcdonaldj/projpack/internal/ports"
)

// Suffix is appended to the archive path to name its manifest.
const Suffix = ".manifest.json"

// DefaultKeepLast bounds the recorded history.
const DefaultKeepLast = 50

type Entry struct {
	Backend   string    `json:"backend"`
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	GitHead   string    `json:"git_head,omitempty"`
	FileCount int       `json:"file_count"`
	Files     []string  `json:"files"`
}

type Manifest struct {
	Archive string  `json:"archive"`
	Source  string  `json:"source"`
	Entries []Entry `json:"entries"`
}

func ManifestPath(archivePath string) string {
	return archivePath + Suffix
}

// Load reads the manifest next to archivePath. A missing manifest yields an
// empty one.
func Load(fs ports.FileSystem, archivePath string) (*Manifest, error) {
	data, err := fs.ReadFile(ManifestPath(archivePath))
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{
				Archive: filepath.Base(archivePath),
				Entries: []Entry{},
			}, nil
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) Save(fs ports.FileSystem, archivePath string) error {
	path := ManifestPath(archivePath)

	// Ensure directory exists
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	return fs.WriteFile(path, data, 0644)
}

func (m *Manifest) Add(entry Entry) {
	m.Entries = append(m.Entries, entry)
}

func (m *Manifest) Latest() *Entry {
	if len(m.Entries) == 0 {
		return nil
	}
	return &m.Entries[len(m.Entries)-1]
}

// Trim drops the oldest entries beyond keepLast and returns how many
// were removed.
func (m *Manifest) Trim(keepLast int) int {
	if keepLast <= 0 || len(m.Entries) <= keepLast {
		return 0
	}
	// Entries are ordered oldest to newest
	toRemove := len(m.Entries) - keepLast
	m.Entries = m.Entries[toRemove:]
	return toRemove
}

// ComputeSHA256 calculates SHA256 hash of a file
func ComputeSHA256(fs ports.FileSystem, filePath string) (string, error) {
	f, err := fs.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
