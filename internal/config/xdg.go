// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

const appDir = "bibleclock"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultDataDir returns the directory holding the database and rendered frames.
func DefaultDataDir() string {
	return filepath.Join(XDGDataHome(), appDir)
}

// DBPath returns the SQLite database path inside dataDir.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, "bibleclock.db")
}

// TranslationsDir returns the directory of local translation files inside dataDir.
func TranslationsDir(dataDir string) string {
	return filepath.Join(dataDir, "translations")
}

// PreviewPath returns the default PNG path for simulated display output.
func PreviewPath(dataDir string) string {
	return filepath.Join(dataDir, "display.png")
}

// DefaultContentPath returns the default YAML content file path.
func DefaultContentPath() string {
	return filepath.Join(XDGConfigHome(), appDir, "content.yaml")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appDir, "config.toml")
}
