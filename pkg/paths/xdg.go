// Package paths provides XDG-compliant path resolution for agentdeck.
//
// Resolution order:
// 1. AGENTDECK_HOME (portable root) → $AGENTDECK_HOME/{config,data,state,cache}
// 2. XDG env vars → $XDG_*_HOME/agentdeck
// 3. Platform defaults → ~/.config/agentdeck, ~/.local/share/agentdeck, etc.
package paths

import (
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if deckHome := os.Getenv("AGENTDECK_HOME"); deckHome != "" {
		return filepath.Join(deckHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getDataHome returns the base data home directory.
func getDataHome() string {
	if deckHome := os.Getenv("AGENTDECK_HOME"); deckHome != "" {
		return filepath.Join(deckHome, "data")
	}
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return xdgDataHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if deckHome := os.Getenv("AGENTDECK_HOME"); deckHome != "" {
		return filepath.Join(deckHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// getCacheHome returns the base cache home directory.
func getCacheHome() string {
	if deckHome := os.Getenv("AGENTDECK_HOME"); deckHome != "" {
		return filepath.Join(deckHome, "cache")
	}
	if xdgCacheHome := os.Getenv("XDG_CACHE_HOME"); xdgCacheHome != "" {
		return xdgCacheHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".cache")
	}
	return ""
}

// ConfigDir returns the agentdeck configuration directory.
// Used for config files like agentdeck.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "agentdeck")
}

// DataDir returns the agentdeck data directory.
func DataDir() string {
	base := getDataHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "agentdeck")
}

// StateDir returns the agentdeck state directory.
// Used for the project store, logs, and the daemon PID file.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "agentdeck")
}

// CacheDir returns the agentdeck cache directory.
func CacheDir() string {
	base := getCacheHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "agentdeck")
}

// ProjectStorePath returns the path to the persisted project metadata file.
func ProjectStorePath() string {
	return filepath.Join(StateDir(), "projects.json")
}

// PidFilePath returns the path to the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "agentdeckd.pid")
}

// EnsureDirs creates all agentdeck directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		DataDir(),
		StateDir(),
		CacheDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
