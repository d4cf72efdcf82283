// Package mode drives display-mode transitions and their refresh side effects.
package mode

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/verte-zerg/bibleclock/internal/model"
	"github.com/verte-zerg/bibleclock/internal/settings"
)

// Refresher asks the render loop to redraw. Implementations must not block.
type Refresher interface {
	Refresh(reason string)
}

// WakeWordSetter forwards the wake-word flag to the voice collaborator.
type WakeWordSetter interface {
	SetWakeWord(ctx context.Context, enabled bool) error
}

// ActivityTracker records user-visible activity.
type ActivityTracker interface {
	Track(action, details string) model.Activity
}

// Controller applies mode and settings transitions on top of a settings.Store.
type Controller struct {
	store     *settings.Store
	refresher Refresher
	voice     WakeWordSetter
	activity  ActivityTracker
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithVoice forwards wake-word changes to v.
func WithVoice(v WakeWordSetter) Option {
	return func(c *Controller) {
		c.voice = v
	}
}

// WithActivity records transitions to a.
func WithActivity(a ActivityTracker) Option {
	return func(c *Controller) {
		c.activity = a
	}
}

// New creates a Controller.
func New(store *settings.Store, refresher Refresher, opts ...Option) *Controller {
	c := &Controller{store: store, refresher: refresher}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns the current settings.
func (c *Controller) Settings() model.Settings {
	return c.store.Get()
}

// SetMode selects a base mode and leaves parallel mode. It refreshes even when
// nothing changed.
func (c *Controller) SetMode(ctx context.Context, m model.DisplayMode) (model.Settings, error) {
	off := false
	s, err := c.store.Apply(ctx, settings.Patch{DisplayMode: &m, ParallelMode: &off})
	if err != nil {
		return s, err
	}
	c.track("Display mode changed", fmt.Sprintf("Changed to %s mode", m))
	c.ForceRefresh("mode " + string(m))
	return s, nil
}

// SetParallel toggles the parallel overlay. Enabling it resets the base mode
// to time; disabling leaves the base mode alone.
func (c *Controller) SetParallel(ctx context.Context, enabled bool) (model.Settings, error) {
	p := settings.Patch{ParallelMode: &enabled}
	if enabled {
		timeMode := model.ModeTime
		p.DisplayMode = &timeMode
	}
	s, err := c.store.Apply(ctx, p)
	if err != nil {
		return s, err
	}
	if enabled {
		c.track("Parallel mode enabled", fmt.Sprintf("%s / %s", s.Translation, s.SecondaryTranslation))
	} else {
		c.track("Parallel mode disabled", "")
	}
	c.ForceRefresh("parallel")
	return s, nil
}

// Apply commits a partial update without normalizing mode and overlay. The
// display is refreshed only when updateDisplay is set.
func (c *Controller) Apply(ctx context.Context, p settings.Patch, updateDisplay bool) (model.Settings, error) {
	before := c.store.Get()
	s, err := c.store.Apply(ctx, p)
	if err != nil {
		return s, err
	}
	if p.WakeWordEnabled != nil && *p.WakeWordEnabled != before.WakeWordEnabled {
		c.forwardWakeWord(ctx, *p.WakeWordEnabled)
	}
	if fields := p.Fields(); len(fields) > 0 {
		c.track("Settings updated", strings.Join(fields, ", "))
	}
	if updateDisplay {
		c.ForceRefresh("settings")
	}
	return s, nil
}

// SetWakeWord persists the flag and then tells the voice collaborator. A voice
// failure is logged; the persisted flag stands.
func (c *Controller) SetWakeWord(ctx context.Context, enabled bool) (model.Settings, error) {
	s, err := c.store.Apply(ctx, settings.Patch{WakeWordEnabled: &enabled})
	if err != nil {
		return s, err
	}
	c.forwardWakeWord(ctx, enabled)
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	c.track("Wake word "+state, "")
	return s, nil
}

// SetDevotionalInterval changes the rotation interval. A devotional display is
// refreshed right away.
func (c *Controller) SetDevotionalInterval(ctx context.Context, minutes int) (model.Settings, error) {
	s, err := c.store.Apply(ctx, settings.Patch{DevotionalInterval: &minutes})
	if err != nil {
		return s, err
	}
	c.track("Devotional interval changed", fmt.Sprintf("Every %d minutes", minutes))
	if s.DisplayMode == model.ModeDevotional {
		c.ForceRefresh("devotional interval")
	}
	return s, nil
}

// ForceRefresh signals the render loop and returns immediately.
func (c *Controller) ForceRefresh(reason string) {
	if c.refresher == nil {
		return
	}
	c.refresher.Refresh(reason)
}

func (c *Controller) forwardWakeWord(ctx context.Context, enabled bool) {
	if c.voice == nil {
		return
	}
	if err := c.voice.SetWakeWord(ctx, enabled); err != nil {
		log.Printf("voice: failed to set wake word=%t: %v", enabled, err)
	}
}

func (c *Controller) track(action, details string) {
	if c.activity == nil {
		return
	}
	c.activity.Track(action, details)
}
