package mocks

import (
	"github.com/mcdonaldj/projpack/internal/ports"
)

// MockArchiver implements ports.Archiver for testing.
type MockArchiver struct {
	// CompressCalls records calls to Compress
	CompressCalls []CompressCall
	// ExtractCalls records calls to Extract
	ExtractCalls []ExtractCall
	// ValidateCalls records archive paths passed to Validate
	ValidateCalls []string
	// ListResults maps archive paths to member listings
	ListResults map[string]map[string]ports.FileInfo
	// Errors maps method names to errors
	Errors map[string]error
	// ExtractErrors maps a single requested member to an Extract error
	ExtractErrors map[string]error
}

// CompressCall records parameters of a Compress call.
type CompressCall struct {
	ArchivePath string
	RootDir     string
	Files       []string
}

// ExtractCall records parameters of an Extract call.
type ExtractCall struct {
	ArchivePath string
	DestDir     string
	Members     []string
}

// NewMockArchiver creates a new mock archiver.
func NewMockArchiver() *MockArchiver {
	return &MockArchiver{
		ListResults:   make(map[string]map[string]ports.FileInfo),
		Errors:        make(map[string]error),
		ExtractErrors: make(map[string]error),
	}
}

// Compress records the call and returns the number of files.
func (m *MockArchiver) Compress(archivePath, rootDir string, files []string) (int, error) {
	m.CompressCalls = append(m.CompressCalls, CompressCall{
		ArchivePath: archivePath,
		RootDir:     rootDir,
		Files:       files,
	})
	if err, ok := m.Errors["Compress"]; ok {
		return 0, err
	}
	return len(files), nil
}

// Validate records the call.
func (m *MockArchiver) Validate(archivePath string) error {
	m.ValidateCalls = append(m.ValidateCalls, archivePath)
	if err, ok := m.Errors["Validate"]; ok {
		return err
	}
	return nil
}

// Extract records the call. A single-member request fails with the
// matching entry of ExtractErrors, if any.
func (m *MockArchiver) Extract(archivePath, destDir string, members []string) error {
	m.ExtractCalls = append(m.ExtractCalls, ExtractCall{
		ArchivePath: archivePath,
		DestDir:     destDir,
		Members:     members,
	})
	if len(members) == 1 {
		if err, ok := m.ExtractErrors[members[0]]; ok {
			return err
		}
	}
	if err, ok := m.Errors["Extract"]; ok {
		return err
	}
	return nil
}

// List returns the configured listing for archivePath.
func (m *MockArchiver) List(archivePath string) (map[string]ports.FileInfo, error) {
	if err, ok := m.Errors["List"]; ok {
		return nil, err
	}
	if result, ok := m.ListResults[archivePath]; ok {
		return result, nil
	}
	return make(map[string]ports.FileInfo), nil
}

// Compile-time check that MockArchiver implements ports.Archiver.
var _ ports.Archiver = (*MockArchiver)(nil)
