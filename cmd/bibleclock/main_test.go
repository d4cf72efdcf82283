package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/bibleclock/internal/config"
	"github.com/verte-zerg/bibleclock/internal/model"
	"github.com/verte-zerg/bibleclock/internal/settings"
	"github.com/verte-zerg/bibleclock/internal/stats"
)

func ptr[T any](v T) *T {
	return &v
}

func TestDefaultSettingsFromConfig(t *testing.T) {
	s, err := defaultSettings(config.DefaultsConfig{
		DisplayMode:        ptr("devotional"),
		Translation:        ptr("ESV"),
		DevotionalInterval: ptr(30),
	})
	if err != nil {
		t.Fatalf("default settings: %v", err)
	}
	if s.DisplayMode != model.ModeDevotional || s.Translation != model.ESV || s.DevotionalInterval != 30 {
		t.Fatalf("unexpected settings %+v", s)
	}
	if s.SecondaryTranslation != model.AMP {
		t.Fatalf("unset keys should keep defaults, got %s", s.SecondaryTranslation)
	}

	_, err = defaultSettings(config.DefaultsConfig{DevotionalInterval: ptr(7)})
	if err == nil || !strings.Contains(err.Error(), "[defaults]") {
		t.Fatalf("expected invalid defaults error, got %v", err)
	}
	if !errors.Is(err, settings.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestApplyConfigRespectsFlags(t *testing.T) {
	var addr string
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "")
	applyStringConfig(cmd, "addr", &addr, ptr(":8080"))
	if addr != ":8080" {
		t.Fatalf("config should apply to unset flag, got %q", addr)
	}

	if err := cmd.Flags().Set("addr", ":9090"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	applyStringConfig(cmd, "addr", &addr, ptr(":8080"))
	if addr != ":9090" {
		t.Fatalf("explicit flag must win, got %q", addr)
	}

	var missing string
	applyStringConfig(cmd, "voice-cmd", &missing, ptr("voice"))
	if missing != "" {
		t.Fatalf("unknown flags must be ignored")
	}
}

func TestRenderPlainStatsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := renderPlainStats(&buf, stats.Report{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No verses displayed yet.") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRenderPlainStats(t *testing.T) {
	report := stats.Report{
		Days:      []model.DayCount{{Day: "2026-03-09", Count: 1}, {Day: "2026-03-10", Count: 3}},
		Books:     []model.BookCount{{Book: "John", Count: 3}, {Book: "Psalms", Count: 1}},
		BooksSeen: 2,
		Modes:     map[model.DisplayMode]int{model.ModeTime: 4},
		Total:     4,
	}
	var buf bytes.Buffer
	if err := renderPlainStats(&buf, report); err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Verses displayed: 4", "Top Books", "John", "Modes"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, buf.String())
		}
	}
}
