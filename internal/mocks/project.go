package mocks

import (
	"github.com/mcdonaldj/projpack/internal/ports"
)

// MockLocator implements ports.ArchiveLocator for testing.
type MockLocator struct {
	Path string
}

// ArchivePath returns the configured path.
func (m *MockLocator) ArchivePath() string {
	return m.Path
}

// MockProjectFiles implements ports.ProjectFiles for testing.
type MockProjectFiles struct {
	Files []string
	Err   error
	// Calls counts ProjectFiles invocations
	Calls int
}

// ProjectFiles returns the configured list.
func (m *MockProjectFiles) ProjectFiles() ([]string, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Files, nil
}

// Compile-time checks.
var (
	_ ports.ArchiveLocator = (*MockLocator)(nil)
	_ ports.ProjectFiles   = (*MockProjectFiles)(nil)
)
