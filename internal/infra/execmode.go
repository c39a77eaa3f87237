package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser keeps data under the user's home and wakes via LaunchAgents.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root: system data dir and LaunchDaemons.
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode      ExecMode
	PlistDir  string // where wake job plists go
	DataDir   string // databases, key, config.yaml, logs
	HostsFile string
	IsRoot    bool
}

// LogFile is the rotating log of background processes.
func (c *ExecModeConfig) LogFile() string {
	return filepath.Join(c.DataDir, "logs", "focuslock.log")
}

// DetectExecMode determines the execution mode based on effective UID.
// Under sudo the invoking user's home is used for user mode paths.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:      ExecModeSystem,
			PlistDir:  "/Library/LaunchDaemons",
			DataDir:   "/var/lib/focuslock",
			HostsFile: "/etc/hosts",
			IsRoot:    true,
		}
	}
	return UserModeConfig(GetRealUserHome())
}

// UserModeConfig returns user mode paths rooted at home.
func UserModeConfig(home string) *ExecModeConfig {
	return &ExecModeConfig{
		Mode:      ExecModeUser,
		PlistDir:  filepath.Join(home, "Library", "LaunchAgents"),
		DataDir:   filepath.Join(home, ".focuslock"),
		HostsFile: "/etc/hosts",
		IsRoot:    os.Geteuid() == 0,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (LaunchDaemon, root)"
	case ExecModeUser:
		return "user (LaunchAgent, non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
