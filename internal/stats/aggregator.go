package stats

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// Health states.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
	HealthUnknown  = "unknown"
)

const (
	defaultTelemetryTimeout = 2 * time.Second
	defaultHistoryDays      = 30
)

// SettingsSource supplies the current settings.
type SettingsSource interface {
	Get() model.Settings
}

// TelemetrySource reads system metrics. A returned error marks every field unavailable.
type TelemetrySource interface {
	Read(ctx context.Context) (model.Telemetry, error)
}

// VoiceSource reports the voice collaborator state.
type VoiceSource interface {
	Status(ctx context.Context) (model.VoiceState, error)
}

// HistorySource reports persisted per-day display counts.
type HistorySource interface {
	DailyActivity(ctx context.Context, now time.Time, days int) ([]model.DayCount, error)
}

// Aggregator builds read-only status snapshots. Telemetry, Voice and History
// may be nil.
type Aggregator struct {
	Settings  SettingsSource
	Runtime   *Runtime
	Telemetry TelemetrySource
	Voice     VoiceSource
	History   HistorySource

	HistoryDays      int
	TelemetryTimeout time.Duration
	Now              func() time.Time
}

// Snapshot aggregates every source. It never fails: an unavailable source
// degrades only its own fields.
func (a *Aggregator) Snapshot(ctx context.Context) model.StatusView {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	settings := a.Settings.Get()
	view := model.StatusView{
		Timestamp:            now,
		DisplayMode:          settings.DisplayMode,
		ParallelMode:         settings.ParallelMode,
		Translation:          settings.Translation,
		SecondaryTranslation: settings.SecondaryTranslation,
		ModeUsage:            map[model.DisplayMode]int{},
		TranslationUsage:     map[model.Translation]int{},
		BooksAccessed:        []string{},
		RecentActivities:     []model.Activity{},
	}

	if a.Runtime != nil {
		snap := a.Runtime.Snapshot(now)
		view.StartTime = snap.StartTime
		view.UptimeHours = math.Round(now.Sub(snap.StartTime).Hours()*100) / 100
		view.VersesDisplayed = snap.VersesDisplayed
		view.VersesToday = snap.VersesToday
		view.ModeUsage = snap.ModeUsage
		view.TranslationUsage = snap.TranslationUsage
		view.BooksAccessed = snap.BooksAccessed
		view.RecentActivities = snap.Activities
	}

	view.Telemetry = a.readTelemetry(ctx)
	view.Health, view.HealthIssues = Health(view.Telemetry)

	view.Voice = model.VoiceState{WakeWordEnabled: settings.WakeWordEnabled}
	if a.Voice != nil {
		state, err := a.Voice.Status(ctx)
		if err != nil {
			log.Printf("voice status unavailable: %v", err)
		} else {
			view.Voice = state
		}
	}

	if a.History != nil {
		days := a.HistoryDays
		if days <= 0 {
			days = defaultHistoryDays
		}
		daily, err := a.History.DailyActivity(ctx, now, days)
		if err != nil {
			log.Printf("display history unavailable: %v", err)
		} else {
			view.DailyActivity = daily
		}
	}
	return view
}

func (a *Aggregator) readTelemetry(ctx context.Context) model.Telemetry {
	if a.Telemetry == nil {
		return model.Telemetry{}
	}
	timeout := a.TelemetryTimeout
	if timeout <= 0 {
		timeout = defaultTelemetryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	t, err := a.Telemetry.Read(ctx)
	if err != nil {
		log.Printf("telemetry unavailable: %v", err)
		return model.Telemetry{}
	}
	return t
}

// Health classifies a telemetry reading: no issues is healthy, one is a
// warning, more are critical. With no available metric the state is unknown.
func Health(t model.Telemetry) (string, []string) {
	if !t.CPUUsage.Available && !t.MemoryUsage.Available && !t.DiskUsage.Available && !t.CPUTemperature.Available {
		return HealthUnknown, nil
	}
	var issues []string
	if t.CPUUsage.Available && t.CPUUsage.Value > 90 {
		issues = append(issues, "High CPU usage")
	}
	if t.MemoryUsage.Available && t.MemoryUsage.Value > 85 {
		issues = append(issues, "High memory usage")
	}
	if t.DiskUsage.Available && t.DiskUsage.Value > 90 {
		issues = append(issues, "Low disk space")
	}
	if t.CPUTemperature.Available && t.CPUTemperature.Value > 80 {
		issues = append(issues, "High CPU temperature")
	}
	if t.DiskUsage.Available && t.DiskUsage.Value > 85 {
		issues = append(issues, "Low disk space warning")
	}
	switch len(issues) {
	case 0:
		return HealthHealthy, nil
	case 1:
		return HealthWarning, issues
	default:
		return HealthCritical, issues
	}
}
