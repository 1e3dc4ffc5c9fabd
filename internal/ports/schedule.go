package ports

// ScheduleService abstracts a recurring compress of one project root.
// Production code uses the MacLaunchdService adapter; tests use MockScheduleService.
// All roots are absolute paths.
type ScheduleService interface {
	// PlistPath returns where the schedule for root is stored.
	PlistPath(root string) string

	// LogPath returns where scheduled runs for root write their output.
	LogPath(root string) string

	// Install writes the schedule and loads it. An empty execPath means
	// the projpack binary found in PATH.
	Install(execPath, root string, hour, minute int) error

	// Uninstall unloads the schedule and removes it.
	Uninstall(root string) error

	// IsInstalled checks if a schedule exists for root.
	IsInstalled(root string) bool

	// Status returns "not installed", "loaded" or "not loaded".
	Status(root string) string
}
