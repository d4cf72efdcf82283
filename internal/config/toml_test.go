package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if cfg.Server.Addr != nil || cfg.Display.Driver != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":8080"

[display]
driver = "waveshare"
width = 250

[voice]
command = "python3 voice_assistant.py"

[defaults]
display-mode = "devotional"
devotional-interval = 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Addr == nil || *cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %v", cfg.Server.Addr)
	}
	if cfg.Display.Driver == nil || *cfg.Display.Driver != "waveshare" {
		t.Fatalf("unexpected driver: %v", cfg.Display.Driver)
	}
	if cfg.Display.Width == nil || *cfg.Display.Width != 250 {
		t.Fatalf("unexpected width: %v", cfg.Display.Width)
	}
	if cfg.Display.Height != nil {
		t.Fatalf("expected unset height to stay nil")
	}
	if cfg.Voice.Command == nil || *cfg.Voice.Command != "python3 voice_assistant.py" {
		t.Fatalf("unexpected voice command: %v", cfg.Voice.Command)
	}
	if cfg.Defaults.DisplayMode == nil || *cfg.Defaults.DisplayMode != "devotional" {
		t.Fatalf("unexpected default mode: %v", cfg.Defaults.DisplayMode)
	}
	if cfg.Defaults.DevotionalInterval == nil || *cfg.Defaults.DevotionalInterval != 30 {
		t.Fatalf("unexpected default interval: %v", cfg.Defaults.DevotionalInterval)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\naddr="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
