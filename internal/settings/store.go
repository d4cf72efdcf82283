// Package settings owns the validated, persisted display configuration.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// Persister durably stores the settings snapshot.
type Persister interface {
	LoadSettings(ctx context.Context) (model.Settings, bool, error)
	SaveSettings(ctx context.Context, s model.Settings) error
}

// Store holds the current settings. All reads and writes go through one mutex.
type Store struct {
	mu      sync.Mutex
	current model.Settings
	persist Persister
}

// Load creates a Store from the persisted snapshot, or from defaults when
// nothing has been saved. Defaults are written through so the first read after
// a restart sees the same values.
func Load(ctx context.Context, persist Persister, defaults model.Settings) (*Store, error) {
	if persist == nil {
		return nil, errors.New("settings persister is nil")
	}
	if err := Validate(defaults); err != nil {
		return nil, fmt.Errorf("invalid default settings: %w", err)
	}
	current, ok, err := persist.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if ok {
		if err := Validate(current); err != nil {
			log.Printf("persisted settings rejected (%v); using defaults", err)
			ok = false
		}
	}
	if !ok {
		current = defaults
		if err := persist.SaveSettings(ctx, current); err != nil {
			return nil, &PersistenceError{Err: err}
		}
	}
	return &Store{current: current, persist: persist}, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Apply validates and persists a partial update. Either every field in the
// patch is committed or none is.
func (s *Store) Apply(ctx context.Context, p Patch) (model.Settings, error) {
	if err := p.Validate(); err != nil {
		return s.Get(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := p.applyTo(s.current)
	if err := s.persist.SaveSettings(ctx, next); err != nil {
		return s.current, &PersistenceError{Err: err}
	}
	s.current = next
	return next, nil
}
