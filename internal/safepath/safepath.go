// Package safepath normalizes archive member names and keeps extraction
// targets inside their destination directory.
package safepath

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/mcdonaldj/projpack/internal/ports"
)

// MemberName converts a project-relative file path into the slash-separated
// member name stored in an archive. Absolute paths and paths that climb out
// of the project root are rejected with ports.ErrUnsafePath.
func MemberName(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ports.ErrUnsafePath)
	}
	slashed := filepath.ToSlash(p)
	if filepath.IsAbs(p) || strings.HasPrefix(slashed, "/") {
		return "", fmt.Errorf("%w: %s is absolute", ports.ErrUnsafePath, p)
	}
	name := path.Clean(slashed)
	if name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("%w: %s", ports.ErrUnsafePath, p)
	}
	return name, nil
}

// Target returns the filesystem path a member extracts to under destDir.
// Members that would land outside destDir (ZipSlip) are rejected.
func Target(destDir, member string) (string, error) {
	absDestDir, err := filepath.Abs(destDir)
	if err != nil {
		return "", fmt.Errorf("resolving destination path: %w", err)
	}
	absDestDir = filepath.Clean(absDestDir)

	fpath := filepath.Join(absDestDir, filepath.FromSlash(member))
	if !IsWithinDir(absDestDir, fpath) || fpath == absDestDir {
		return "", fmt.Errorf("%w: path traversal detected: %s", ports.ErrUnsafePath, member)
	}
	return fpath, nil
}

// IsWithinDir checks if the target path is within the base directory.
func IsWithinDir(absBaseDir, targetPath string) bool {
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	absTarget = filepath.Clean(absTarget)

	return strings.HasPrefix(absTarget, absBaseDir+string(filepath.Separator)) ||
		absTarget == absBaseDir
}
