package mocks

import (
	"github.com/mcdonaldj/projpack/internal/ports"
)

// MockScheduleService implements ports.ScheduleService for testing.
type MockScheduleService struct {
	// Installed tracks which roots are "installed"
	Installed map[string]bool
	// PlistPathResult is the plist path to return
	PlistPathResult string
	// LogPathResult is the log path to return
	LogPathResult string
	// InstallCalls records calls to Install
	InstallCalls []InstallCall
	// Errors maps method names to errors
	Errors map[string]error
}

// InstallCall records parameters of an Install call.
type InstallCall struct {
	ExecPath string
	Root     string
	Hour     int
	Minute   int
}

// NewMockScheduleService creates a new mock schedule service.
func NewMockScheduleService() *MockScheduleService {
	return &MockScheduleService{
		Installed:       make(map[string]bool),
		PlistPathResult: "/tmp/mock.plist",
		LogPathResult:   "/tmp/mock.log",
		Errors:          make(map[string]error),
	}
}

// PlistPath returns the configured plist path.
func (m *MockScheduleService) PlistPath(root string) string {
	return m.PlistPathResult
}

// LogPath returns the configured log path.
func (m *MockScheduleService) LogPath(root string) string {
	return m.LogPathResult
}

// Install records the call and marks root installed.
func (m *MockScheduleService) Install(execPath, root string, hour, minute int) error {
	m.InstallCalls = append(m.InstallCalls, InstallCall{
		ExecPath: execPath,
		Root:     root,
		Hour:     hour,
		Minute:   minute,
	})
	if err, ok := m.Errors["Install"]; ok {
		return err
	}
	m.Installed[root] = true
	return nil
}

// Uninstall marks root not installed.
func (m *MockScheduleService) Uninstall(root string) error {
	if err, ok := m.Errors["Uninstall"]; ok {
		return err
	}
	delete(m.Installed, root)
	return nil
}

// IsInstalled reports whether root was installed.
func (m *MockScheduleService) IsInstalled(root string) bool {
	return m.Installed[root]
}

// Status returns "loaded" for installed roots.
func (m *MockScheduleService) Status(root string) string {
	if m.Installed[root] {
		return "loaded"
	}
	return "not installed"
}

// Compile-time check that MockScheduleService implements ports.ScheduleService.
var _ ports.ScheduleService = (*MockScheduleService)(nil)
