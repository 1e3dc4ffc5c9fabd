package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcdonaldj/projpack/internal/backend"
	"github.com/mcdonaldj/projpack/internal/logging"
)

// FileName is the per-project config file, stored in the project root.
const FileName = ".projpack.yaml"

// DefaultMaxMemberSize caps extracted member size (10GB).
const DefaultMaxMemberSize int64 = 10 * 1024 * 1024 * 1024

type Config struct {
	Archive        string   `yaml:"archive"`
	Backend        string   `yaml:"backend"`
	Files          []string `yaml:"files"`
	RequiredMember string   `yaml:"required_member"`
	LogLevel       string   `yaml:"log_level"`
	LogFile        string   `yaml:"log_file,omitempty"`
	MaxMemberSize  int64    `yaml:"max_member_size"`
}

func DefaultConfig() (*Config, error) {
	return &Config{
		Archive: "project.zip",
		Backend: backend.Auto,
		Files: []string{
			"config.json",
			"data.db",
			"*.log",
		},
		RequiredMember: "config.json",
		LogLevel:       logging.LevelInfo,
		MaxMemberSize:  DefaultMaxMemberSize,
	}, nil
}

// ConfigPath returns the config file location for a project root.
func ConfigPath(root string) (string, error) {
	abs, err := filepath.Abs(ExpandPath(root))
	if err != nil {
		return "", fmt.Errorf("resolving project root: %w", err)
	}
	return filepath.Join(abs, FileName), nil
}

// Load reads the project's config, falling back to defaults when the file
// does not exist.
func Load(root string) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	path, err := ConfigPath(root)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later in the codec.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Archive) == "" {
		return fmt.Errorf("archive must not be empty")
	}
	if _, err := backend.Resolve(c.Backend, nil); err != nil {
		return err
	}
	if c.MaxMemberSize < 0 {
		return fmt.Errorf("max_member_size must not be negative")
	}
	return nil
}

func (c *Config) Save(root string) error {
	path, err := ConfigPath(root)
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ArchivePath resolves the archive location against the project root.
func (c *Config) ArchivePath(root string) string {
	archive := ExpandPath(c.Archive)
	if filepath.IsAbs(archive) {
		return archive
	}
	return filepath.Join(ExpandPath(root), archive)
}

// ResolveBackend applies the backend setting. "auto" uses the
// process-wide selector result.
func (c *Config) ResolveBackend() (backend.Backend, error) {
	mode := strings.ToLower(strings.TrimSpace(c.Backend))
	if mode == "" || mode == backend.Auto {
		return backend.Default(), nil
	}
	return backend.Parse(mode)
}

// Locator is the archive location of one project root.
type Locator struct {
	Path string
}

// ArchivePath implements ports.ArchiveLocator.
func (l Locator) ArchivePath() string {
	return l.Path
}

// Locator returns the archive locator for a project root.
func (c *Config) Locator(root string) Locator {
	return Locator{Path: c.ArchivePath(root)}
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unexpanded if home unavailable
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
