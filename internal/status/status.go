// Package status compares the archive with the project's working tree.
package status

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/mcdonaldj/projpack/internal/codec"
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/logging"
	"github.com/mcdonaldj/projpack/internal/projectfiles"
	"github.com/mcdonaldj/projpack/internal/session"
)

// FileChange is one path that differs between the archive and the working tree.
type FileChange struct {
	Path        string
	Status      rune // 'M' modified, 'A' only in working tree, 'D' only in archive
	ArchiveSize int64
	WorkingSize int64
}

// Result is the comparison of an archive with its working tree.
type Result struct {
	Archive   string
	Backend   string
	Changes   []FileChange
	Added     int
	Modified  int
	Deleted   int
	Unchanged int
}

// Clean reports whether the working tree matches the archive.
func (r *Result) Clean() bool {
	return len(r.Changes) == 0
}

// DiffLine represents a single line in the diff output
type DiffLine struct {
	LineNum1 int    // Line number in the archive (0 if added)
	LineNum2 int    // Line number in the working tree (0 if deleted)
	Type     rune   // '+' added, '-' deleted, ' ' unchanged
	Content  string // Line content
}

// FileDiffResult contains the line-by-line diff of a single file
type FileDiffResult struct {
	Path     string
	Lines    []DiffLine
	IsBinary bool
}

// Service compares archives with injected dependencies.
type Service struct {
	deps session.Deps
}

// NewService creates a status service with the given dependencies.
func NewService(deps session.Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	return &Service{deps: deps}
}

// NewDefaultService creates a status service with real production dependencies.
func NewDefaultService() *Service {
	return NewService(session.DefaultDeps(nil))
}

// Compare lists the differences between the archive and the project
// files under root. The archive is extracted into a scratch directory.
func (s *Service) Compare(cfg *config.Config, root string) (*Result, error) {
	sess, err := session.Open(root, cfg, s.deps)
	if err != nil {
		return nil, err
	}

	listing, err := sess.Codec.List()
	if err != nil {
		return nil, err
	}
	current, err := projectfiles.New(sess.Deps.FS, sess.Root, cfg.Files).ProjectFiles()
	if err != nil {
		return nil, fmt.Errorf("listing project files: %w", err)
	}

	scratch, cleanup, err := s.extract(sess, nil)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result := &Result{Archive: sess.ArchivePath(), Backend: sess.Codec.Backend().String()}

	paths := make(map[string]bool)
	for name := range listing {
		paths[name] = true
	}
	for _, name := range current {
		paths[name] = true
	}

	for path := range paths {
		info, archived := listing[path]
		working, workErr := sess.Deps.FS.ReadFile(filepath.Join(sess.Root, filepath.FromSlash(path)))
		present := workErr == nil
		if workErr != nil && !errors.Is(workErr, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", path, workErr)
		}

		change := FileChange{Path: path, ArchiveSize: info.Size, WorkingSize: int64(len(working))}
		switch {
		case archived && !present:
			change.Status = 'D'
			change.WorkingSize = 0
			result.Deleted++
		case !archived && present:
			change.Status = 'A'
			result.Added++
		case !archived && !present:
			// Listed in config but absent everywhere.
			continue
		default:
			stored, err := sess.Deps.FS.ReadFile(filepath.Join(scratch, filepath.FromSlash(path)))
			if err != nil {
				return nil, &codec.ArchiveContentError{Path: sess.ArchivePath(), Backend: sess.Codec.Backend(), Member: path, Err: err}
			}
			if bytes.Equal(stored, working) {
				result.Unchanged++
				continue
			}
			change.Status = 'M'
			result.Modified++
		}
		result.Changes = append(result.Changes, change)
	}

	// Sort changes: M, A, D then by path
	order := map[rune]int{'M': 0, 'A': 1, 'D': 2}
	sort.Slice(result.Changes, func(i, j int) bool {
		if result.Changes[i].Status != result.Changes[j].Status {
			return order[result.Changes[i].Status] < order[result.Changes[j].Status]
		}
		return result.Changes[i].Path < result.Changes[j].Path
	})

	sess.Deps.Logger.Debug("status computed", "archive", result.Archive,
		"modified", result.Modified, "added", result.Added, "deleted", result.Deleted)
	return result, nil
}

// FileDiff computes the line diff of one changed path, archive on the left.
func (s *Service) FileDiff(cfg *config.Config, root string, change FileChange) (*FileDiffResult, error) {
	sess, err := session.Open(root, cfg, s.deps)
	if err != nil {
		return nil, err
	}

	var archived, working string
	if change.Status != 'A' {
		if err := sess.Codec.Verify(); err != nil {
			return nil, err
		}
		scratch, cleanup, err := s.extract(sess, []string{change.Path})
		if err != nil {
			return nil, err
		}
		defer cleanup()
		data, err := sess.Deps.FS.ReadFile(filepath.Join(scratch, filepath.FromSlash(change.Path)))
		if err != nil {
			return nil, err
		}
		archived = string(data)
	}
	if change.Status != 'D' {
		data, err := sess.Deps.FS.ReadFile(filepath.Join(sess.Root, filepath.FromSlash(change.Path)))
		if err != nil {
			return nil, err
		}
		working = string(data)
	}

	result := &FileDiffResult{Path: change.Path}
	if IsBinaryContent(archived) || IsBinaryContent(working) {
		result.IsBinary = true
		return result, nil
	}
	result.Lines = LineDiff(archived, working)
	return result, nil
}

// extract unpacks members (all when nil) into a fresh scratch directory.
func (s *Service) extract(sess *session.Session, members []string) (string, func(), error) {
	scratch, err := os.MkdirTemp("", "projpack-status-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(scratch) }

	archiver := sess.Deps.ArchiverFor(sess.Codec.Backend(), sess.Config.MaxMemberSize)
	if err := archiver.Extract(sess.ArchivePath(), scratch, members); err != nil {
		cleanup()
		return "", nil, &codec.ArchiveContentError{Path: sess.ArchivePath(), Backend: sess.Codec.Backend(), Err: err}
	}
	return scratch, cleanup, nil
}

// IsBinaryContent checks if content appears to be binary
func IsBinaryContent(content string) bool {
	if len(content) == 0 {
		return false
	}
	// Check first 8000 bytes for null bytes or invalid UTF-8
	sample := content
	if len(sample) > 8000 {
		sample = sample[:8000]
	}
	return strings.Contains(sample, "\x00") || !utf8.ValidString(sample)
}

// LineDiff returns the line-based diff of two texts.
func LineDiff(text1, text2 string) []DiffLine {
	dmp := diffmatchpatch.New()
	chars1, chars2, lineArray := dmp.DiffLinesToChars(text1, text2)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lineArray)

	var lines []DiffLine
	n1, n2 := 0, 0
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				n1++
				n2++
				lines = append(lines, DiffLine{LineNum1: n1, LineNum2: n2, Type: ' ', Content: line})
			case diffmatchpatch.DiffDelete:
				n1++
				lines = append(lines, DiffLine{LineNum1: n1, Type: '-', Content: line})
			case diffmatchpatch.DiffInsert:
				n2++
				lines = append(lines, DiffLine{LineNum2: n2, Type: '+', Content: line})
			}
		}
	}
	return lines
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\n")
	}
	return parts
}
