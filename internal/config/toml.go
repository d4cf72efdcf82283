// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Server   ServerConfig   `toml:"server"`
	Display  DisplayConfig  `toml:"display"`
	Data     DataConfig     `toml:"data"`
	Bible    BibleConfig    `toml:"bible"`
	Voice    VoiceConfig    `toml:"voice"`
	Content  ContentConfig  `toml:"content"`
	Defaults DefaultsConfig `toml:"defaults"`
}

// ServerConfig maps web server settings.
type ServerConfig struct {
	Addr *string `toml:"addr"`
}

// DisplayConfig maps e-paper output settings.
type DisplayConfig struct {
	Driver *string `toml:"driver"`
	Output *string `toml:"output"`
	Width  *int    `toml:"width"`
	Height *int    `toml:"height"`
}

// DataConfig maps storage locations.
type DataConfig struct {
	Dir *string `toml:"dir"`
}

// BibleConfig maps remote verse lookup settings.
type BibleConfig struct {
	APIURL         *string `toml:"api-url"`
	TimeoutSeconds *int    `toml:"timeout-seconds"`
}

// VoiceConfig maps the voice assistant sidecar.
type VoiceConfig struct {
	Command *string `toml:"command"`
}

// ContentConfig maps the YAML content file location.
type ContentConfig struct {
	Path *string `toml:"path"`
}

// DefaultsConfig seeds settings when nothing has been persisted yet.
type DefaultsConfig struct {
	DisplayMode          *string `toml:"display-mode"`
	Translation          *string `toml:"translation"`
	SecondaryTranslation *string `toml:"secondary-translation"`
	TimeFormat           *string `toml:"time-format"`
	DevotionalInterval   *int    `toml:"devotional-interval"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
