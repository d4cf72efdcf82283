package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/bibleclock/internal/model"
)

type fakeHistory struct {
	err error
}

func (f fakeHistory) DailyActivity(context.Context, time.Time, int) ([]model.DayCount, error) {
	return []model.DayCount{{Day: "2026-03-09", Count: 2}, {Day: "2026-03-10", Count: 5}}, f.err
}

func (f fakeHistory) BookCounts(context.Context, *time.Time) ([]model.BookCount, error) {
	return []model.BookCount{{Book: "John", Count: 4}, {Book: "Psalms", Count: 3}}, f.err
}

func (f fakeHistory) ModeCounts(context.Context, *time.Time) (map[model.DisplayMode]int, error) {
	return map[model.DisplayMode]int{model.ModeTime: 5, model.ModeRandom: 2}, f.err
}

func sized(t *testing.T, m *Model) *Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(*Model)
}

func TestOverviewAndTabs(t *testing.T) {
	m := sized(t, NewModel(fakeHistory{}, model.StatsConfig{}))
	view := m.View()
	for _, want := range []string{"Overview", "Verses", "5 on 2026-03-10", "window=7"} {
		if !strings.Contains(view, want) {
			t.Fatalf("overview missing %q:\n%s", want, view)
		}
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = next.(*Model)
	if m.activeTab != tabBooks || !strings.Contains(m.View(), "Psalms") {
		t.Fatalf("expected books table, got tab %d:\n%s", m.activeTab, m.View())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = next.(*Model)
	if !strings.Contains(m.View(), "random") {
		t.Fatalf("expected modes table:\n%s", m.View())
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if next.(*Model).activeTab != tabOverview {
		t.Fatalf("tabs should wrap around")
	}
}

func TestLoadError(t *testing.T) {
	m := sized(t, NewModel(fakeHistory{err: errors.New("db locked")}, model.StatsConfig{}))
	if !strings.Contains(m.View(), "db locked") {
		t.Fatalf("expected error in footer:\n%s", m.View())
	}
}

func TestParseFilter(t *testing.T) {
	m := NewModel(fakeHistory{}, model.StatsConfig{})
	m.filterInputs[0].SetValue("2026-03-01")
	m.filterInputs[1].SetValue("14")
	m.filterInputs[2].SetValue("")
	cfg, err := m.parseFilter()
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cfg.Since == nil || cfg.Since.Day() != 1 || cfg.Days != 14 || cfg.TopBooks != 0 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	m.filterInputs[1].SetValue("-3")
	if _, err := m.parseFilter(); err == nil {
		t.Fatalf("expected error for negative days")
	}
	m.filterInputs[0].SetValue("March")
	if _, err := m.parseFilter(); err == nil {
		t.Fatalf("expected error for bad date")
	}
}

func TestWindowSteps(t *testing.T) {
	if nextWindow(1) != 7 || nextWindow(7) != 14 {
		t.Fatalf("unexpected next windows")
	}
	if prevWindow(14) != 7 || prevWindow(7) != 1 {
		t.Fatalf("unexpected prev windows")
	}
}
