// Package clock runs the minute-aligned select, render and show cycle.
package clock

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/verte-zerg/bibleclock/internal/display"
	"github.com/verte-zerg/bibleclock/internal/model"
)

// Signal coalesces refresh requests into at most one pending wake-up. It
// implements mode.Refresher.
type Signal struct {
	ch chan string
}

// NewSignal returns an empty Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan string, 1)}
}

// Refresh requests a redraw without blocking. A request made while another
// is pending is dropped.
func (s *Signal) Refresh(reason string) {
	select {
	case s.ch <- reason:
	default:
	}
}

// C delivers pending refresh reasons.
func (s *Signal) C() <-chan string {
	return s.ch
}

// SettingsSource supplies the settings to render with.
type SettingsSource interface {
	Settings() model.Settings
}

// Selector picks the verse for a moment.
type Selector interface {
	Select(ctx context.Context, st model.Settings, now time.Time) model.Verse
}

// Renderer draws a verse.
type Renderer interface {
	Render(v model.Verse) (*image.Gray, error)
}

// Recorder counts displayed verses.
type Recorder interface {
	RecordDisplay(ev model.DisplayEvent)
}

// History persists displayed verses.
type History interface {
	InsertDisplayEvent(ctx context.Context, ev model.DisplayEvent) (int64, error)
}

// Config wires a Loop. History and Now are optional.
type Config struct {
	Settings SettingsSource
	Selector Selector
	Renderer Renderer
	Panel    display.Panel
	Recorder Recorder
	History  History
	Signal   *Signal
	Now      func() time.Time
}

// Loop owns the panel. Verse selection runs outside both locks.
type Loop struct {
	cfg Config

	panelMu sync.Mutex // serializes render and panel access

	mu      sync.Mutex // guards current and shownAt
	current *model.Verse
	shownAt time.Time
}

// ErrNothingShown is returned when an operation needs a displayed verse.
var ErrNothingShown = errors.New("no verse has been displayed yet")

// New returns a Loop.
func New(cfg Config) *Loop {
	if cfg.Signal == nil {
		cfg.Signal = NewSignal()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Loop{cfg: cfg}
}

// Signal returns the refresh signal the loop listens on.
func (l *Loop) Signal() *Signal {
	return l.cfg.Signal
}

// Run draws immediately, then at every minute boundary and on every refresh
// request, until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Update(ctx, "startup"); err != nil {
		log.Printf("clock: %v", err)
	}
	for {
		timer := time.NewTimer(untilNextMinute(l.cfg.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if err := l.tick(ctx); err != nil {
				log.Printf("clock: %v", err)
			}
		case reason := <-l.cfg.Signal.C():
			timer.Stop()
			if err := l.Update(ctx, reason); err != nil {
				log.Printf("clock: %v", err)
			}
		}
	}
}

func untilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

// tick redraws on a minute boundary. A devotional verse stays up until its
// rotation slot ends.
func (l *Loop) tick(ctx context.Context) error {
	if l.holdDevotional(l.cfg.Settings.Settings(), l.cfg.Now()) {
		return nil
	}
	return l.Update(ctx, "tick")
}

func (l *Loop) holdDevotional(st model.Settings, now time.Time) bool {
	if st.DisplayMode != model.ModeDevotional {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil || !l.current.IsDevotional {
		return false
	}
	return sameSlot(l.shownAt, now, st.DevotionalInterval)
}

func sameSlot(a, b time.Time, interval int) bool {
	if interval <= 0 {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by || am != bm || ad != bd {
		return false
	}
	return (a.Hour()*60+a.Minute())/interval == (b.Hour()*60+b.Minute())/interval
}

// Update selects, renders and shows the verse for the current moment and
// records it.
func (l *Loop) Update(ctx context.Context, reason string) error {
	now := l.cfg.Now()
	st := l.cfg.Settings.Settings()
	v := l.cfg.Selector.Select(ctx, st, now)

	l.panelMu.Lock()
	err := l.show(ctx, v)
	if err == nil {
		l.mu.Lock()
		l.current = &v
		l.shownAt = now
		l.mu.Unlock()
	}
	l.panelMu.Unlock()
	if err != nil {
		return fmt.Errorf("%s update: %w", reason, err)
	}

	ev := model.DisplayEvent{
		ShownAt:     now,
		Mode:        st.DisplayMode,
		Translation: st.Translation,
		Book:        v.Book,
		Reference:   v.Reference,
	}
	if l.cfg.Recorder != nil {
		l.cfg.Recorder.RecordDisplay(ev)
	}
	if l.cfg.History != nil {
		if _, err := l.cfg.History.InsertDisplayEvent(ctx, ev); err != nil {
			log.Printf("clock: failed to record display event: %v", err)
		}
	}
	return nil
}

// show must be called with panelMu held.
func (l *Loop) show(ctx context.Context, v model.Verse) error {
	frame, err := l.cfg.Renderer.Render(v)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := l.cfg.Panel.Show(ctx, frame); err != nil {
		return fmt.Errorf("show: %w", err)
	}
	return nil
}

// ClearGhosting cycles the panel and redraws the current verse.
func (l *Loop) ClearGhosting(ctx context.Context) error {
	l.panelMu.Lock()
	defer l.panelMu.Unlock()
	if err := l.cfg.Panel.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	l.mu.Lock()
	current := l.current
	l.mu.Unlock()
	if current == nil {
		return nil
	}
	return l.show(ctx, *current)
}

// CurrentVerse returns the verse on the panel and when it was drawn.
func (l *Loop) CurrentVerse() (model.Verse, time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return model.Verse{}, time.Time{}, ErrNothingShown
	}
	return *l.current, l.shownAt, nil
}
