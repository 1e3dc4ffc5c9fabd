// Package cli provides the command-line interface with injectable io.Writer for testing.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mcdonaldj/projpack/internal/adapters/maclaunchd"
	"github.com/mcdonaldj/projpack/internal/backend"
	"github.com/mcdonaldj/projpack/internal/backup"
	"github.com/mcdonaldj/projpack/internal/codec"
	"github.com/mcdonaldj/projpack/internal/config"
	"github.com/mcdonaldj/projpack/internal/logging"
	"github.com/mcdonaldj/projpack/internal/manifest"
	"github.com/mcdonaldj/projpack/internal/ports"
	"github.com/mcdonaldj/projpack/internal/recovery"
	"github.com/mcdonaldj/projpack/internal/session"
	"github.com/mcdonaldj/projpack/internal/status"
)

// ConfigService provides configuration operations for the CLI.
type ConfigService interface {
	Load(root string) (*config.Config, error)
	Save(cfg *config.Config, root string) error
	ConfigPath(root string) (string, error)
	DefaultConfig() (*config.Config, error)
}

// BackupService provides compression for the CLI.
type BackupService interface {
	Compress(cfg *config.Config, root string) backup.BackupResult
}

// RecoveryService provides decompression and inspection for the CLI.
type RecoveryService interface {
	Verify(cfg *config.Config, root string) (bool, error)
	Recover(cfg *config.Config, opts recovery.RecoverOptions) error
	ListMembers(cfg *config.Config, root string) ([]recovery.Member, error)
	History(cfg *config.Config, root string) ([]manifest.Entry, error)
}

// StatusService compares the archive with the working tree for the CLI.
type StatusService interface {
	Compare(cfg *config.Config, root string) (*status.Result, error)
}

// CLI represents the command-line interface with injectable dependencies.
type CLI struct {
	Out     io.Writer // Standard output
	Err     io.Writer // Standard error
	Version string    // Application version
	Args    []string  // Command arguments (like os.Args)

	// Exit function for testability (defaults to os.Exit)
	Exit func(code int)

	// Injectable dependencies (nil means use defaults)
	ConfigSvc   ConfigService
	BackupSvc   BackupService
	RecoverySvc RecoveryService
	StatusSvc   StatusService
	ScheduleSvc ports.ScheduleService

	// ProbeBz2 reports bzip2 availability for the backend command.
	ProbeBz2 backend.Probe

	log *logging.Logger

	// Color functions (can be disabled for testing)
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	gray   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a new CLI with default settings.
func New(version string) *CLI {
	return &CLI{
		Out:      os.Stdout,
		Err:      os.Stderr,
		Version:  version,
		Args:     os.Args,
		Exit:     os.Exit,
		ProbeBz2: backend.Bz2Available,
		green:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:   color.New(color.FgYellow).SprintFunc(),
		cyan:     color.New(color.FgCyan).SprintFunc(),
		gray:     color.New(color.FgHiBlack).SprintFunc(),
		red:      color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI configured for testing (no colors, captured output).
func NewForTesting(out, errOut io.Writer, args []string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	exitCode := 0
	return &CLI{
		Out:      out,
		Err:      errOut,
		Version:  "test",
		Args:     args,
		Exit:     func(code int) { exitCode = code; _ = exitCode },
		ProbeBz2: backend.Bz2Available,
		green:    noColor,
		yellow:   noColor,
		cyan:     noColor,
		gray:     noColor,
		red:      noColor,
	}
}

// defaultConfigService wraps the config package functions.
type defaultConfigService struct{}

func (d *defaultConfigService) Load(root string) (*config.Config, error)   { return config.Load(root) }
func (d *defaultConfigService) Save(cfg *config.Config, root string) error { return cfg.Save(root) }
func (d *defaultConfigService) ConfigPath(root string) (string, error)     { return config.ConfigPath(root) }
func (d *defaultConfigService) DefaultConfig() (*config.Config, error)     { return config.DefaultConfig() }

// Helper methods to get the service or default
func (c *CLI) configSvc() ConfigService {
	if c.ConfigSvc != nil {
		return c.ConfigSvc
	}
	return &defaultConfigService{}
}

func (c *CLI) backupSvc() BackupService {
	if c.BackupSvc != nil {
		return c.BackupSvc
	}
	return backup.NewService(session.DefaultDeps(c.logger()))
}

func (c *CLI) recoverySvc() RecoveryService {
	if c.RecoverySvc != nil {
		return c.RecoverySvc
	}
	return recovery.NewService(session.DefaultDeps(c.logger()))
}

func (c *CLI) statusSvc() StatusService {
	if c.StatusSvc != nil {
		return c.StatusSvc
	}
	return status.NewService(session.DefaultDeps(c.logger()))
}

func (c *CLI) scheduleSvc() ports.ScheduleService {
	if c.ScheduleSvc != nil {
		return c.ScheduleSvc
	}
	return maclaunchd.New()
}

func (c *CLI) logger() *logging.Logger {
	if c.log == nil {
		return logging.NopLogger()
	}
	return c.log
}

// openLog starts file logging when the project config names a log file.
func (c *CLI) openLog(cfg *config.Config, root string) {
	if c.log != nil || cfg.LogFile == "" {
		return
	}
	path := config.ExpandPath(cfg.LogFile)
	if !filepath.IsAbs(path) {
		path = filepath.Join(config.ExpandPath(root), path)
	}
	log, err := logging.NewLogger(path, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(c.Err, "%s logging disabled: %v\n", c.yellow("!"), err)
		return
	}
	c.log = log.With("command", c.command())
}

func (c *CLI) closeLog() {
	if c.log != nil {
		_ = c.log.Close()
		c.log = nil
	}
}

func (c *CLI) command() string {
	if len(c.Args) < 2 {
		return ""
	}
	return c.Args[1]
}

// flags returns the --key=value options after the command.
func (c *CLI) flags() map[string]string {
	opts := make(map[string]string)
	if len(c.Args) < 3 {
		return opts
	}
	for _, arg := range c.Args[2:] {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		key, value, _ := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		opts[key] = value
	}
	return opts
}

// root returns the --root value, or the working directory.
func (c *CLI) root() string {
	if r := c.flags()["root"]; r != "" {
		return r
	}
	return "."
}

// Run executes the CLI with the configured arguments.
func (c *CLI) Run() {
	if len(c.Args) < 2 {
		fmt.Fprintln(c.Out, "No command specified. Use 'projpack help' for usage.")
		return
	}
	defer c.closeLog()

	switch c.Args[1] {
	case "compress":
		c.RunCompress()
	case "decompress":
		c.RunDecompress()
	case "verify":
		c.RunVerify()
	case "list":
		c.ListMembers()
	case "history":
		c.ShowHistory()
	case "status":
		c.ShowStatus()
	case "schedule":
		c.RunSchedule()
	case "backend":
		c.ShowBackend()
	case "init":
		c.InitConfig()
	case "version", "-v", "--version":
		fmt.Fprintf(c.Out, "projpack v%s\n", c.Version)
	case "help", "-h", "--help":
		c.PrintUsage()
	default:
		fmt.Fprintf(c.Err, "Unknown command: %s\n", c.Args[1])
		c.PrintUsage()
		c.Exit(1)
	}
}

// PrintUsage prints the help message.
func (c *CLI) PrintUsage() {
	fmt.Fprintln(c.Out, `projpack - Single-File Project Archiver

Usage:
  projpack compress [--root=DIR]             Add the project files to the archive
  projpack decompress [--root=DIR] [--dest=DIR] [--skip-checksum]
                                             Restore the project files from the archive
  projpack verify [--root=DIR]               Check archive integrity without extracting
  projpack list [--root=DIR]                 List archive members
  projpack history [--root=DIR]              Show recorded compress runs
  projpack status [--root=DIR]               Compare the archive with the working tree
  projpack backend [--root=DIR]              Show the archive backend in use
  projpack schedule install [--root=DIR] [--at=HH:MM]
                                             Compress daily via launchd (default 03:00)
  projpack schedule uninstall [--root=DIR]   Remove the daily schedule
  projpack schedule status [--root=DIR]      Show the schedule state
  projpack init [--root=DIR]                 Create default config file
  projpack ui [DIR]                          Browse changes interactively (default with no command)
  projpack version, -v                       Show version
  projpack help, -h                          Show this help

Config: <root>/.projpack.yaml`)
}

// loadConfig loads the project config and starts logging. It reports
// failure to the user and returns nil.
func (c *CLI) loadConfig(root string) *config.Config {
	cfg, err := c.configSvc().Load(root)
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return nil
	}
	c.openLog(cfg, root)
	return cfg
}

// InitConfig creates the default config file.
func (c *CLI) InitConfig() {
	svc := c.configSvc()
	root := c.root()

	cfg, err := svc.DefaultConfig()
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}
	if err := svc.Save(cfg, root); err != nil {
		fmt.Fprintf(c.Err, "Error saving config: %v\n", err)
		c.Exit(1)
		return
	}
	path, err := svc.ConfigPath(root)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}
	fmt.Fprintf(c.Out, "Created config at %s\n", path)
}

// RunCompress runs the compress command.
func (c *CLI) RunCompress() {
	root := c.root()
	cfg := c.loadConfig(root)
	if cfg == nil {
		return
	}

	fmt.Fprintf(c.Out, "%s Compressing %s...\n", c.cyan("=>"), root)

	r := c.backupSvc().Compress(cfg, root)
	if r.Error != nil {
		fmt.Fprintf(c.Err, "  %s %v\n", c.red("x"), r.Error)
		c.Exit(1)
		return
	}

	fmt.Fprintf(c.Out, "  %s %s %s %s %d files\n",
		c.green("*"),
		r.Archive,
		c.yellow(backup.FormatSize(r.Size)),
		c.gray("("+r.Backend+")"),
		r.FileCount)
}

// RunDecompress restores the project files from the archive.
func (c *CLI) RunDecompress() {
	root := c.root()
	cfg := c.loadConfig(root)
	if cfg == nil {
		return
	}

	flags := c.flags()
	opts := recovery.RecoverOptions{Root: root, Dest: flags["dest"]}
	if _, ok := flags["skip-checksum"]; ok {
		opts.SkipChecksum = true
	}

	dest := opts.Dest
	if dest == "" {
		dest = root
	}
	fmt.Fprintf(c.Out, "Decompressing into %s...\n", dest)

	if err := c.recoverySvc().Recover(cfg, opts); err != nil {
		fmt.Fprintf(c.Err, "Decompress failed: %v\n", err)
		c.hintFor(err)
		c.Exit(1)
		return
	}

	fmt.Fprintf(c.Out, "%s Successfully restored %s\n", c.green("*"), dest)
}

// hintFor prints a one-line explanation of a codec error class.
func (c *CLI) hintFor(err error) {
	var corrupt *codec.ArchiveCorruptError
	var content *codec.ArchiveContentError
	switch {
	case errors.As(err, &corrupt):
		fmt.Fprintf(c.Err, "  %s the archive is damaged or was written by a different backend; nothing was extracted\n", c.yellow("!"))
	case errors.As(err, &content):
		fmt.Fprintf(c.Err, "  %s the archive opened but its contents are incomplete or unreadable\n", c.yellow("!"))
	}
}

// RunVerify verifies the archive.
func (c *CLI) RunVerify() {
	root := c.root()
	cfg := c.loadConfig(root)
	if cfg == nil {
		return
	}

	checked, err := c.recoverySvc().Verify(cfg, root)
	if err != nil {
		fmt.Fprintf(c.Err, "Verification failed: %v\n", err)
		c.hintFor(err)
		c.Exit(1)
		return
	}

	if checked {
		fmt.Fprintf(c.Out, "%s Archive and checksum verified\n", c.green("*"))
	} else {
		fmt.Fprintf(c.Out, "%s Archive verified %s\n", c.green("*"), c.gray("(no manifest checksum)"))
	}
}

// ListMembers lists the archive members.
func (c *CLI) ListMembers() {
	root := c.root()
	cfg := c.loadConfig(root)
	if cfg == nil {
		return
	}

	members, err := c.recoverySvc().ListMembers(cfg, root)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	if len(members) == 0 {
		fmt.Fprintln(c.Out, "Archive is empty")
		return
	}

	fmt.Fprintf(c.Out, "Members of %s:\n\n", c.cyan(cfg.Archive))
	fmt.Fprintf(c.Out, "  %-40s %10s %s\n", "NAME", "SIZE", "CRC32")
	fmt.Fprintf(c.Out, "  %-40s %10s %s\n", "----", "----", "-----")
	for _, m := range members {
		crc := c.gray("-")
		if m.CRC32 != 0 {
			crc = fmt.Sprintf("%08x", m.CRC32)
		}
		fmt.Fprintf(c.Out, "  %-40s %10s %s\n", m.Name, backup.FormatSize(m.Size), crc)
	}
}

// ShowStatus prints the paths that differ between the archive and the working tree.
func (c *CLI) ShowStatus() {
	root := c.root()
	cfg := c.loadConfig(root)
	if cfg == nil {
		return
	}

	result, err := c.statusSvc().Compare(cfg, root)
	if err != nil {
		fmt.Fprintf(c.Err, "Status failed: %v\n", err)
		c.hintFor(err)
		c.Exit(1)
		return
	}

	if result.Clean() {
		fmt.Fprintf(c.Out, "%s Working tree matches %s %s\n", c.green("*"), c.cyan(cfg.Archive), c.gray(fmt.Sprintf("(%d files)", result.Unchanged)))
		return
	}

	fmt.Fprintf(c.Out, "Changes against %s:\n\n", c.cyan(cfg.Archive))
	for _, ch := range result.Changes {
		mark := string(ch.Status)
		switch ch.Status {
		case 'M':
			mark = c.yellow(mark)
		case 'A':
			mark = c.green(mark)
		case 'D':
			mark = c.red(mark)
		}
		fmt.Fprintf(c.Out, "  %s %s\n", mark, ch.Path)
	}
	fmt.Fprintf(c.Out, "\n%d modified, %d added, %d deleted, %d unchanged\n",
		result.Modified, result.Added, result.Deleted, result.Unchanged)
}

// ShowHistory lists the manifest entries for the archive.
func (c *CLI) ShowHistory() {
	root := c.root()
	cfg := c.loadConfig(root)
	if cfg == nil {
		return
	}

	entries, err := c.recoverySvc().History(cfg, root)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	if len(entries) == 0 {
		fmt.Fprintf(c.Out, "No history for %s\n", cfg.Archive)
		return
	}

	fmt.Fprintf(c.Out, "History of %s:\n\n", c.cyan(cfg.Archive))
	fmt.Fprintf(c.Out, "  %-20s %-8s %10s %8s %s\n", "CREATED", "BACKEND", "SIZE", "FILES", "GIT HEAD")
	fmt.Fprintf(c.Out, "  %-20s %-8s %10s %8s %s\n", "-------", "-------", "----", "-----", "--------")

	for _, e := range entries {
		gitHead := e.GitHead
		if len(gitHead) > 7 {
			gitHead = gitHead[:7]
		}
		if gitHead == "" {
			gitHead = c.gray("-")
		}
		fmt.Fprintf(c.Out, "  %-20s %-8s %10s %8d %s\n",
			e.CreatedAt.Format("20060102-150405"),
			e.Backend,
			backup.FormatSize(e.SizeBytes),
			e.FileCount,
			gitHead)
	}
}

// ShowBackend prints the configured and effective backend.
func (c *CLI) ShowBackend() {
	root := c.root()
	cfg := c.loadConfig(root)
	if cfg == nil {
		return
	}

	probe := c.ProbeBz2
	if probe == nil {
		probe = backend.Bz2Available
	}
	b, err := backend.Resolve(cfg.Backend, probe)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	configured := cfg.Backend
	if configured == "" {
		configured = backend.Auto
	}
	bz2 := c.gray("unavailable")
	if probe() {
		bz2 = c.green("available")
	}

	fmt.Fprintln(c.Out, "projpack backend:")
	fmt.Fprintf(c.Out, "  Configured: %s\n", configured)
	fmt.Fprintf(c.Out, "  Effective:  %s\n", c.cyan(b.String()))
	fmt.Fprintf(c.Out, "  bzip2:      %s\n", bz2)
	fmt.Fprintf(c.Out, "  Archive:    %s\n", cfg.ArchivePath(root))
}

// RunSchedule manages the launchd schedule for the project root.
func (c *CLI) RunSchedule() {
	action := "status"
	if len(c.Args) > 2 && !strings.HasPrefix(c.Args[2], "--") {
		action = c.Args[2]
	}

	root, err := filepath.Abs(config.ExpandPath(c.root()))
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}
	svc := c.scheduleSvc()

	switch action {
	case "install":
		hour, minute, err := parseClock(c.flags()["at"])
		if err != nil {
			fmt.Fprintf(c.Err, "Error: %v\n", err)
			c.Exit(1)
			return
		}
		if svc.IsInstalled(root) {
			fmt.Fprintln(c.Out, "Schedule already installed. Uninstall first to reinstall.")
			c.Exit(1)
			return
		}
		if err := svc.Install("", root, hour, minute); err != nil {
			fmt.Fprintf(c.Err, "Error installing schedule: %v\n", err)
			c.Exit(1)
			return
		}
		fmt.Fprintf(c.Out, "%s Installed daily compress of %s at %02d:%02d\n", c.green("*"), c.cyan(root), hour, minute)
		fmt.Fprintf(c.Out, "  Plist: %s\n", svc.PlistPath(root))
		fmt.Fprintf(c.Out, "  Log:   %s\n", svc.LogPath(root))

	case "uninstall":
		if !svc.IsInstalled(root) {
			fmt.Fprintln(c.Out, "Schedule not installed.")
			c.Exit(1)
			return
		}
		if err := svc.Uninstall(root); err != nil {
			fmt.Fprintf(c.Err, "Error uninstalling schedule: %v\n", err)
			c.Exit(1)
			return
		}
		fmt.Fprintf(c.Out, "%s Uninstalled schedule for %s\n", c.yellow("-"), root)

	case "status":
		fmt.Fprintf(c.Out, "Schedule for %s: %s\n", c.cyan(root), svc.Status(root))
		if svc.IsInstalled(root) {
			fmt.Fprintf(c.Out, "  Plist: %s\n", svc.PlistPath(root))
			fmt.Fprintf(c.Out, "  Log:   %s\n", svc.LogPath(root))
		}

	default:
		fmt.Fprintf(c.Err, "Unknown schedule action: %s\n", action)
		c.Exit(1)
	}
}

// parseClock parses HH:MM, defaulting to 03:00.
func parseClock(s string) (int, int, error) {
	if s == "" {
		return 3, 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --at %q, expected HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}
