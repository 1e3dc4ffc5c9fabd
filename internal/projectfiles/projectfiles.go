// Package projectfiles expands a project's configured file patterns into
// the ordered list of project-relative paths the codec archives.
package projectfiles

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/safepath"
)

// Provider implements ports.ProjectFiles over a project root.
type Provider struct {
	fs       ports.FileSystem
	root     string
	patterns []string
}

// New creates a Provider. Patterns are filepath.Match globs relative to root.
func New(fs ports.FileSystem, root string, patterns []string) *Provider {
	return &Provider{fs: fs, root: root, patterns: patterns}
}

// hasMeta reports whether p contains glob metacharacters.
func hasMeta(p string) bool {
	return strings.ContainsAny(p, `*?[\`)
}

// ProjectFiles expands the patterns, in order, into relative paths.
// Literal names are kept even when absent so the archivers can report the
// missing file; globs contribute only regular files that exist. Repeats are
// dropped, keeping the first position.
func (p *Provider) ProjectFiles() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(rel string) {
		if !seen[rel] {
			seen[rel] = true
			files = append(files, rel)
		}
	}

	for _, pattern := range p.patterns {
		if _, err := safepath.MemberName(pattern); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}

		if !hasMeta(pattern) {
			add(filepath.ToSlash(filepath.Clean(pattern)))
			continue
		}

		matches, err := p.fs.Glob(filepath.Join(p.root, pattern))
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := p.fs.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(p.root, match)
			if err != nil {
				return nil, fmt.Errorf("relativizing %s: %w", match, err)
			}
			add(filepath.ToSlash(rel))
		}
	}
	return files, nil
}

// SelectMembers applies the patterns to archive member names rather than
// the working tree. Literal names are kept even when the archive lacks them;
// globs contribute matching members in sorted order.
func (p *Provider) SelectMembers(members []string) ([]string, error) {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)

	seen := make(map[string]bool)
	var files []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			files = append(files, name)
		}
	}

	for _, pattern := range p.patterns {
		if _, err := safepath.MemberName(pattern); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		glob := filepath.ToSlash(filepath.Clean(pattern))
		if !hasMeta(pattern) {
			add(glob)
			continue
		}
		for _, member := range sorted {
			ok, err := path.Match(glob, member)
			if err != nil {
				return nil, fmt.Errorf("matching %q: %w", pattern, err)
			}
			if ok {
				add(member)
			}
		}
	}
	return files, nil
}

// Compile-time checks that Provider implements the ports it serves.
var (
	_ ports.ProjectFiles   = (*Provider)(nil)
	_ ports.MemberSelector = (*Provider)(nil)
)
