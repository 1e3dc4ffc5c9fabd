// Package ziparchiver provides an archiver adapter for ZIP containers
// using github.com/klauspost/compress/zip.
package ziparchiver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/safepath"
)

// MaxDecompressSize is the default maximum uncompressed member size (10GB).
// This prevents decompression bomb attacks (G110).
const MaxDecompressSize = 10 * 1024 * 1024 * 1024 // 10GB

// ErrBadMagic is returned by Validate when the file does not start with a
// ZIP signature.
var ErrBadMagic = errors.New("not a zip archive")

var (
	localHeaderSig = []byte("PK\x03\x04")
	emptyZipSig    = []byte("PK\x05\x06")
)

// ZipArchiver implements ports.Archiver for ZIP archives.
type ZipArchiver struct {
	// MaxMemberSize caps the uncompressed size of any extracted member.
	MaxMemberSize int64
}

// New creates a new ZipArchiver adapter.
func New() *ZipArchiver {
	return &ZipArchiver{MaxMemberSize: MaxDecompressSize}
}

// Compress adds files to the archive in append mode. An absent or empty
// archive is created; members of an existing archive are kept unless a
// file with the same member name replaces them. The new archive is written
// to a temporary file next to archivePath and renamed over it, so a failed
// run leaves the previous archive untouched.
func (a *ZipArchiver) Compress(archivePath, rootDir string, files []string) (int, error) {
	names, err := memberNames(files)
	if err != nil {
		return 0, err
	}

	existing, mode, err := openExisting(archivePath)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		defer func() { _ = existing.Close() }()
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".projpack-*.zip.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	w := zip.NewWriter(tmp)
	fileCount, writeErr := writeMembers(w, existing, rootDir, names)

	// Close zip writer first to flush data
	closeErr := w.Close()
	if fileErr := tmp.Close(); closeErr == nil {
		closeErr = fileErr
	}
	if writeErr == nil && closeErr != nil {
		writeErr = fmt.Errorf("closing zip writer: %w", closeErr)
	}
	if writeErr != nil {
		_ = os.Remove(tmpPath) // Best effort cleanup on error path
		return 0, writeErr
	}

	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("setting archive mode: %w", err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("replacing archive: %w", err)
	}

	return fileCount, nil
}

// writeMembers copies surviving members of existing into w, then adds the
// project files.
func writeMembers(w *zip.Writer, existing *zip.ReadCloser, rootDir string, names []string) (int, error) {
	replaced := make(map[string]bool, len(names))
	for _, name := range names {
		replaced[name] = true
	}

	if existing != nil {
		for _, f := range existing.File {
			if replaced[f.Name] {
				continue
			}
			if err := w.Copy(f); err != nil {
				return 0, fmt.Errorf("copying existing member %s: %w", f.Name, err)
			}
		}
	}

	for _, name := range names {
		if err := addFile(w, rootDir, name); err != nil {
			return 0, fmt.Errorf("adding %s: %w", name, err)
		}
	}
	return len(names), nil
}

// addFile writes a single project file as a deflated member.
func addFile(w *zip.Writer, rootDir, name string) error {
	path := filepath.Join(rootDir, filepath.FromSlash(name))
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ports.ErrUnsupported, name)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	writer, err := w.CreateHeader(header)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(writer, file)
	_ = file.Close() // Explicitly ignore close error - data already copied

	return copyErr
}

// openExisting opens the archive for append. A missing or zero-byte file
// yields a nil reader. mode is the permission the rewritten archive gets.
func openExisting(archivePath string) (*zip.ReadCloser, os.FileMode, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0o644, nil
		}
		return nil, 0, err
	}
	if info.Size() == 0 {
		return nil, info.Mode().Perm(), nil
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, 0, fmt.Errorf("reading existing archive for append: %w", err)
	}
	return r, info.Mode().Perm(), nil
}

// memberNames normalizes files and drops repeats, keeping first position.
func memberNames(files []string) ([]string, error) {
	seen := make(map[string]bool, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		name, err := safepath.MemberName(f)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// Validate checks the ZIP signature and that the central directory parses.
func (a *ZipArchiver) Validate(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("%w: file too short", ErrBadMagic)
	}
	if !bytes.Equal(magic, localHeaderSig) && !bytes.Equal(magic, emptyZipSig) {
		return fmt.Errorf("%w: bad signature %x", ErrBadMagic, magic)
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if _, err := zip.NewReader(f, info.Size()); err != nil {
		return fmt.Errorf("reading central directory: %w", err)
	}
	return nil
}

// Extract extracts the requested members (all when members is empty) to destDir.
func (a *ZipArchiver) Extract(archivePath, destDir string, members []string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	selected, err := a.selectMembers(r.File, members)
	if err != nil {
		return err
	}

	for _, f := range selected {
		// SECURITY: Block symlinks to prevent symlink attacks
		if f.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: symlink %s", ports.ErrUnsupported, f.Name)
		}

		fpath, err := safepath.Target(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", fpath, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
			return fmt.Errorf("creating parent directory for %s: %w", fpath, err)
		}

		if err := a.extractFile(f, fpath); err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
	}

	return nil
}

// selectMembers resolves the requested member names against the archive
// before anything is written.
func (a *ZipArchiver) selectMembers(files []*zip.File, members []string) ([]*zip.File, error) {
	if len(members) == 0 {
		return files, nil
	}

	byName := make(map[string]*zip.File, len(files))
	for _, f := range files {
		byName[f.Name] = f // later duplicates win, as readers do
	}

	names, err := memberNames(members)
	if err != nil {
		return nil, err
	}
	selected := make([]*zip.File, 0, len(names))
	for _, name := range names {
		f, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ports.ErrMemberNotFound, name)
		}
		selected = append(selected, f)
	}
	return selected, nil
}

// extractFile extracts a single file from the zip.
func (a *ZipArchiver) extractFile(f *zip.File, destPath string) error {
	limit := a.MaxMemberSize
	if limit <= 0 {
		limit = MaxDecompressSize
	}

	// SECURITY: Limit decompression size to prevent zip bombs (G110)
	declaredSize := f.UncompressedSize64
	if declaredSize > uint64(limit) {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ports.ErrMemberTooLarge, declaredSize, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer func() { _ = outFile.Close() }()

	// Add 1 byte to detect if actual size exceeds declared size
	limitedReader := io.LimitReader(rc, int64(declaredSize)+1)
	written, err := io.Copy(outFile, limitedReader)
	if err != nil {
		return err
	}

	// Check if more data was available than declared (corrupted/malicious zip)
	if written > int64(declaredSize) {
		return fmt.Errorf("decompressed size exceeds declared size")
	}

	return outFile.Close()
}

// List returns a map of member names to their info from the archive.
func (a *ZipArchiver) List(archivePath string) (map[string]ports.FileInfo, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	files := make(map[string]ports.FileInfo)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		// Safe conversion: check for overflow before uint64 -> int64
		size := int64(0)
		if f.UncompressedSize64 <= math.MaxInt64 {
			size = int64(f.UncompressedSize64)
		}
		files[f.Name] = ports.FileInfo{
			Size:  size,
			CRC32: f.CRC32,
		}
	}

	return files, nil
}

// Compile-time check that ZipArchiver implements ports.Archiver.
var _ ports.Archiver = (*ZipArchiver)(nil)
