// Package maclaunchd provides a launchd schedule adapter for macOS.
package maclaunchd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/mcdonaldj/projpack/internal/ports"
)

const plistTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{html .BinaryPath}}</string>
        <string>compress</string>
        <string>--root={{html .Root}}</string>
    </array>
    <key>StartCalendarInterval</key>
    <dict>
        <key>Hour</key>
        <integer>{{.Hour}}</integer>
        <key>Minute</key>
        <integer>{{.Minute}}</integer>
    </dict>
    <key>RunAtLoad</key>
    <false/>
    <key>StandardOutPath</key>
    <string>{{html .LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{html .LogPath}}</string>
</dict>
</plist>
`

const labelPrefix = "com.user.projpack."

type plistConfig struct {
	Label      string
	BinaryPath string
	Root       string
	Hour       int
	Minute     int
	LogPath    string
}

// MacLaunchdService implements ports.ScheduleService for macOS.
type MacLaunchdService struct {
	homeDir   string
	launchctl func(args ...string) error
}

// New creates a new MacLaunchdService adapter.
func New() *MacLaunchdService {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return NewWithHome(home, func(args ...string) error {
		return exec.Command("launchctl", args...).Run()
	})
}

// NewWithHome creates an adapter rooted at home that runs launchctl through fn.
func NewWithHome(home string, fn func(args ...string) error) *MacLaunchdService {
	return &MacLaunchdService{homeDir: home, launchctl: fn}
}

// Label returns the launchd label for root. Each project root gets its own job.
func Label(root string) string {
	sum := sha256.Sum256([]byte(root))
	return labelPrefix + hex.EncodeToString(sum[:4])
}

// PlistPath returns the path where the plist file for root is stored.
func (s *MacLaunchdService) PlistPath(root string) string {
	return filepath.Join(s.homeDir, "Library", "LaunchAgents", Label(root)+".plist")
}

// LogPath returns the path where scheduled runs for root log.
func (s *MacLaunchdService) LogPath(root string) string {
	return filepath.Join(s.homeDir, "Library", "Logs", "projpack", Label(root)+".log")
}

// Install creates the plist file and loads the schedule.
func (s *MacLaunchdService) Install(execPath, root string, hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid time %02d:%02d", hour, minute)
	}

	binaryPath := execPath
	if binaryPath == "" {
		var err error
		binaryPath, err = exec.LookPath("projpack")
		if err != nil {
			return fmt.Errorf("projpack not found in PATH: %w", err)
		}
	}

	logPath := s.LogPath(root)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	config := plistConfig{
		Label:      Label(root),
		BinaryPath: binaryPath,
		Root:       root,
		Hour:       hour,
		Minute:     minute,
		LogPath:    logPath,
	}

	tmpl, err := template.New("plist").Parse(plistTemplate)
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}

	plistPath := s.PlistPath(root)
	if err := os.MkdirAll(filepath.Dir(plistPath), 0755); err != nil {
		return fmt.Errorf("creating LaunchAgents directory: %w", err)
	}

	f, err := os.Create(plistPath)
	if err != nil {
		return fmt.Errorf("creating plist: %w", err)
	}

	if err := tmpl.Execute(f, config); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing plist: %w", err)
	}

	// Close file BEFORE loading to ensure data is flushed
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing plist file: %w", err)
	}

	if err := s.launchctl("load", plistPath); err != nil {
		return fmt.Errorf("loading plist: %w", err)
	}

	return nil
}

// Uninstall unloads the schedule and removes the plist file.
func (s *MacLaunchdService) Uninstall(root string) error {
	plistPath := s.PlistPath(root)

	if _, err := os.Stat(plistPath); os.IsNotExist(err) {
		return fmt.Errorf("plist not found: %s", plistPath)
	}

	_ = s.launchctl("unload", plistPath) // Ignore error if not loaded

	if err := os.Remove(plistPath); err != nil {
		return fmt.Errorf("removing plist: %w", err)
	}

	return nil
}

// IsInstalled checks if a schedule exists for root.
func (s *MacLaunchdService) IsInstalled(root string) bool {
	_, err := os.Stat(s.PlistPath(root))
	return err == nil
}

// Status returns "not installed", "loaded" or "not loaded".
func (s *MacLaunchdService) Status(root string) string {
	if !s.IsInstalled(root) {
		return "not installed"
	}
	if err := s.launchctl("list", Label(root)); err == nil {
		return "loaded"
	}
	return "not loaded"
}

// Compile-time check that MacLaunchdService implements ports.ScheduleService.
var _ ports.ScheduleService = (*MacLaunchdService)(nil)
