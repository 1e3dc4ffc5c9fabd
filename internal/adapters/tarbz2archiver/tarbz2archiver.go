// Package tarbz2archiver provides an archiver adapter for TAR containers
// filtered through bzip2, using archive/tar and github.com/dsnet/compress/bzip2.
package tarbz2archiver

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"

	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/safepath"
)

// MaxDecompressSize is the default maximum uncompressed member size (10GB).
const MaxDecompressSize = 10 * 1024 * 1024 * 1024 // 10GB

// ErrBadMagic is returned by Validate when the file is not a bzip2 stream.
var ErrBadMagic = errors.New("not a bzip2 stream")

// TarBz2Archiver implements ports.Archiver for .tar.bz2 archives.
type TarBz2Archiver struct {
	// Level is the bzip2 block size level, 1 through 9.
	Level int
	// MaxMemberSize caps the uncompressed size of any extracted member.
	MaxMemberSize int64
}

// New creates a new TarBz2Archiver adapter.
func New() *TarBz2Archiver {
	return &TarBz2Archiver{
		Level:         bzip2.DefaultCompression,
		MaxMemberSize: MaxDecompressSize,
	}
}

// Compress writes a fresh archive holding exactly files. The archive is
// built in a temporary file and renamed over archivePath on success.
func (a *TarBz2Archiver) Compress(archivePath, rootDir string, files []string) (int, error) {
	names, err := memberNames(files)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), ".projpack-*.tar.bz2.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()

	writeErr := a.writeArchive(tmp, rootDir, names)
	if closeErr := tmp.Close(); writeErr == nil && closeErr != nil {
		writeErr = fmt.Errorf("closing archive file: %w", closeErr)
	}
	if writeErr != nil {
		_ = os.Remove(tmpPath) // Best effort cleanup on error path
		return 0, writeErr
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("setting archive mode: %w", err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("replacing archive: %w", err)
	}
	return len(names), nil
}

// writeArchive streams the members through tar and bzip2. Both writers are
// closed on every path so the container is terminated.
func (a *TarBz2Archiver) writeArchive(out io.Writer, rootDir string, names []string) (err error) {
	bw, err := bzip2.NewWriter(out, &bzip2.WriterConfig{Level: a.Level})
	if err != nil {
		return fmt.Errorf("creating bzip2 writer: %w", err)
	}
	tw := tar.NewWriter(bw)

	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing tar writer: %w", closeErr)
		}
		if closeErr := bw.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing bzip2 writer: %w", closeErr)
		}
	}()

	for _, name := range names {
		if err := addFile(tw, rootDir, name); err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
	}
	return nil
}

// addFile writes a single project file as a tar member.
func addFile(tw *tar.Writer, rootDir, name string) error {
	path := filepath.Join(rootDir, filepath.FromSlash(name))
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ports.ErrUnsupported, name)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name
	header.Format = tar.FormatPAX

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, err = io.CopyN(tw, file, header.Size)
	return err
}

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

// Validate checks the bzip2 magic and reads the whole tar stream, so a
// truncated or damaged archive fails here before anything is extracted.
// An archive with no members is valid.
func (a *TarBz2Archiver) Validate(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("%w: file too short", ErrBadMagic)
	}
	if magic[0] != 'B' || magic[1] != 'Z' || magic[2] != 'h' || magic[3] < '1' || magic[3] > '9' {
		return fmt.Errorf("%w: bad signature %x", ErrBadMagic, magic)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	br, err := bzip2.NewReader(f, nil)
	if err != nil {
		return fmt.Errorf("opening bzip2 stream: %w", err)
	}
	defer func() { _ = br.Close() }()

	tr := tar.NewReader(br)
	for {
		// Next skips unread member data, so every block is decompressed.
		if _, err := tr.Next(); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading tar header: %w", err)
		}
	}
}

// openReader opens the archive as a tar stream. The returned closer
// releases both the bzip2 reader and the file.
func openReader(archivePath string) (*tar.Reader, func(), error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, err
	}
	br, err := bzip2.NewReader(f, nil)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("opening bzip2 stream: %w", err)
	}
	closeFn := func() {
		_ = br.Close()
		_ = f.Close()
	}
	return tar.NewReader(br), closeFn, nil
}

// Extract extracts the requested members (all when members is empty) to
// destDir. Presence of every requested member is checked in a first pass
// so a missing member fails before anything is written.
func (a *TarBz2Archiver) Extract(archivePath, destDir string, members []string) error {
	var wanted map[string]bool
	if len(members) > 0 {
		names, err := memberNames(members)
		if err != nil {
			return err
		}
		listing, err := a.List(archivePath)
		if err != nil {
			return err
		}
		wanted = make(map[string]bool, len(names))
		for _, name := range names {
			if _, ok := listing[name]; !ok {
				return fmt.Errorf("%w: %s", ports.ErrMemberNotFound, name)
			}
			wanted[name] = true
		}
	}

	tr, closeFn, err := openReader(archivePath)
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}

		name, err := safepath.MemberName(hdr.Name)
		if err != nil {
			return err
		}
		if wanted != nil && !wanted[name] {
			continue
		}
		if err := a.extractEntry(tr, hdr, destDir, name); err != nil {
			return fmt.Errorf("extracting %s: %w", name, err)
		}
	}
}

// extractEntry writes one tar entry below destDir.
func (a *TarBz2Archiver) extractEntry(tr *tar.Reader, hdr *tar.Header, destDir, name string) error {
	fpath, err := safepath.Target(destDir, name)
	if err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(fpath, 0o755)
	case tar.TypeReg:
	default:
		// SECURITY: links and devices are never restored
		return fmt.Errorf("%w: type %q", ports.ErrUnsupported, hdr.Typeflag)
	}

	limit := a.MaxMemberSize
	if limit <= 0 {
		limit = MaxDecompressSize
	}
	if hdr.Size > limit {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ports.ErrMemberTooLarge, hdr.Size, limit)
	}

	if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return fmt.Errorf("creating parent directory for %s: %w", fpath, err)
	}

	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm()|0o200)
	if err != nil {
		return err
	}
	defer func() { _ = outFile.Close() }()

	if _, err := io.CopyN(outFile, tr, hdr.Size); err != nil {
		return err
	}
	return outFile.Close()
}

// List returns a map of member names to their sizes.
func (a *TarBz2Archiver) List(archivePath string) (map[string]ports.FileInfo, error) {
	tr, closeFn, err := openReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	files := make(map[string]ports.FileInfo)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar header: %w", err)
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		name, err := safepath.MemberName(hdr.Name)
		if err != nil {
			return nil, err
		}
		files[name] = ports.FileInfo{Size: hdr.Size}
	}
}

// Compile-time check that TarBz2Archiver implements ports.Archiver.
var _ ports.Archiver = (*TarBz2Archiver)(nil)
