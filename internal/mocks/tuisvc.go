package mocks

import (
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/ports"
)

// MockTUIService implements ports.TUIService for testing.
type MockTUIService struct {
	// ConfigResult is the config to return from LoadConfig
	ConfigResult *config.Config
	// ConfigError is the error to return from LoadConfig
	ConfigError error

	// ArchiveInfo is returned from Archive
	ArchiveInfo ports.TUIArchiveInfo
	// ArchiveError is the error to return from Archive
	ArchiveError error

	// ChangeList is returned from Changes
	ChangeList []ports.TUIChange
	// ChangesError is the error to return from Changes
	ChangesError error

	// Diffs maps paths to file diffs
	Diffs map[string]*ports.TUIFileDiff
	// DiffError is the error to return from FileDiff
	DiffError error

	// Entries is returned from History
	Entries []ports.TUIHistoryEntry
	// HistoryError is the error to return from History
	HistoryError error

	// CompressResult is returned from Compress
	CompressResult ports.TUICompressResult
	// VerifyError is the error to return from Verify
	VerifyError error

	// Call tracking
	LoadConfigCalls []string
	ChangesCalls    int
	FileDiffCalls   []string
	HistoryCalls    int
	CompressCalls   int
	VerifyCalls     int
}

// NewMockTUIService creates a new mock TUI service.
func NewMockTUIService() *MockTUIService {
	return &MockTUIService{
		ConfigResult:   &config.Config{Archive: "project.zip", Backend: "zip"},
		Diffs:          make(map[string]*ports.TUIFileDiff),
		CompressResult: ports.TUICompressResult{Size: 1024, FileCount: 2},
	}
}

// LoadConfig loads the project configuration.
func (m *MockTUIService) LoadConfig(root string) (*config.Config, error) {
	m.LoadConfigCalls = append(m.LoadConfigCalls, root)
	if m.ConfigError != nil {
		return nil, m.ConfigError
	}
	return m.ConfigResult, nil
}

// Archive describes the archive.
func (m *MockTUIService) Archive(cfg *config.Config, root string) (ports.TUIArchiveInfo, error) {
	return m.ArchiveInfo, m.ArchiveError
}

// Changes returns the configured change list.
func (m *MockTUIService) Changes(cfg *config.Config, root string) ([]ports.TUIChange, error) {
	m.ChangesCalls++
	if m.ChangesError != nil {
		return nil, m.ChangesError
	}
	return m.ChangeList, nil
}

// FileDiff returns the configured diff for the change's path.
func (m *MockTUIService) FileDiff(cfg *config.Config, root string, change ports.TUIChange) (*ports.TUIFileDiff, error) {
	m.FileDiffCalls = append(m.FileDiffCalls, change.Path)
	if m.DiffError != nil {
		return nil, m.DiffError
	}
	if d, ok := m.Diffs[change.Path]; ok {
		return d, nil
	}
	return &ports.TUIFileDiff{Path: change.Path}, nil
}

// History returns the configured entries.
func (m *MockTUIService) History(cfg *config.Config, root string) ([]ports.TUIHistoryEntry, error) {
	m.HistoryCalls++
	if m.HistoryError != nil {
		return nil, m.HistoryError
	}
	return m.Entries, nil
}

// Compress records the call and returns CompressResult.
func (m *MockTUIService) Compress(cfg *config.Config, root string) ports.TUICompressResult {
	m.CompressCalls++
	return m.CompressResult
}

// Verify records the call and returns VerifyError.
func (m *MockTUIService) Verify(cfg *config.Config, root string) error {
	m.VerifyCalls++
	return m.VerifyError
}

// Compile-time check that MockTUIService implements ports.TUIService.
var _ ports.TUIService = (*MockTUIService)(nil)
