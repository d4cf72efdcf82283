package mode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"
	"github.com/verte-zerg/bibleclock/internal/settings"
	"github.com/verte-zerg/bibleclock/internal/stats"
)

type memPersister struct {
	mu    sync.Mutex
	saved *model.Settings
	fail  error
}

func (m *memPersister) LoadSettings(context.Context) (model.Settings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return model.Settings{}, false, nil
	}
	return *m.saved, true, nil
}

func (m *memPersister) SaveSettings(_ context.Context, s model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saved = &s
	return nil
}

type countingRefresher struct {
	mu      sync.Mutex
	reasons []string
}

func (r *countingRefresher) Refresh(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

type fakeVoice struct {
	calls []bool
	err   error
}

func (v *fakeVoice) SetWakeWord(_ context.Context, enabled bool) error {
	v.calls = append(v.calls, enabled)
	return v.err
}

type fixture struct {
	ctrl      *Controller
	persist   *memPersister
	refresher *countingRefresher
	voice     *fakeVoice
	runtime   *stats.Runtime
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	p := &memPersister{}
	st, err := settings.Load(context.Background(), p, model.DefaultSettings())
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	f := fixture{
		persist:   p,
		refresher: &countingRefresher{},
		voice:     &fakeVoice{},
		runtime:   stats.NewRuntime(time.Now()),
	}
	f.ctrl = New(st, f.refresher, WithVoice(f.voice), WithActivity(f.runtime))
	return f
}

func TestSetModeNormalizesParallel(t *testing.T) {
	for _, m := range model.DisplayModes {
		for _, parallel := range []bool{false, true} {
			f := newFixture(t)
			ctx := context.Background()
			if parallel {
				if _, err := f.ctrl.SetParallel(ctx, true); err != nil {
					t.Fatalf("set parallel: %v", err)
				}
			}
			got, err := f.ctrl.SetMode(ctx, m)
			if err != nil {
				t.Fatalf("set mode %s: %v", m, err)
			}
			if got.DisplayMode != m || got.ParallelMode {
				t.Fatalf("set mode %s from parallel=%t: got %+v", m, parallel, got)
			}
			if f.ctrl.Settings() != got {
				t.Fatalf("returned settings differ from stored settings")
			}
		}
	}
}

func TestSetModeIdempotentStillRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.ctrl.SetMode(ctx, model.ModeTime); err != nil {
			t.Fatalf("set mode: %v", err)
		}
	}
	if f.refresher.count() != 2 {
		t.Fatalf("expected a refresh per call, got %d", f.refresher.count())
	}
}

func TestSetModeInvalidRejected(t *testing.T) {
	f := newFixture(t)
	before := f.ctrl.Settings()
	_, err := f.ctrl.SetMode(context.Background(), model.DisplayMode("parallel"))
	if !errors.Is(err, settings.ErrInvalidMode) {
		t.Fatalf("expected InvalidMode, got %v", err)
	}
	if f.ctrl.Settings() != before {
		t.Fatalf("settings changed after rejection")
	}
	if f.refresher.count() != 0 {
		t.Fatalf("rejected transition must not refresh")
	}
}

func TestScenarioDevotionalParallelRandom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.ctrl.SetMode(ctx, model.ModeDevotional)
	if err != nil || got.DisplayMode != model.ModeDevotional || got.ParallelMode {
		t.Fatalf("step 1: %+v %v", got, err)
	}
	got, err = f.ctrl.SetParallel(ctx, true)
	if err != nil || got.DisplayMode != model.ModeTime || !got.ParallelMode {
		t.Fatalf("step 2: %+v %v", got, err)
	}
	got, err = f.ctrl.SetMode(ctx, model.ModeRandom)
	if err != nil || got.DisplayMode != model.ModeRandom || got.ParallelMode {
		t.Fatalf("step 3: %+v %v", got, err)
	}
	if f.refresher.count() != 3 {
		t.Fatalf("expected 3 refreshes, got %d", f.refresher.count())
	}
	if f.persist.saved == nil || *f.persist.saved != got {
		t.Fatalf("persisted state diverged: %+v", f.persist.saved)
	}
	acts := f.runtime.Activities(0)
	if len(acts) != 3 || acts[0].Action != "Display mode changed" || acts[1].Action != "Parallel mode enabled" {
		t.Fatalf("unexpected activities: %+v", acts)
	}
}

func TestSetParallelFalseKeepsMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	devotional := model.ModeDevotional
	on := true
	// The generic path can combine any mode with the overlay.
	if _, err := f.ctrl.Apply(ctx, settings.Patch{DisplayMode: &devotional, ParallelMode: &on}, false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, err := f.ctrl.SetParallel(ctx, false)
	if err != nil {
		t.Fatalf("set parallel: %v", err)
	}
	if got.DisplayMode != model.ModeDevotional || got.ParallelMode {
		t.Fatalf("expected devotional without overlay, got %+v", got)
	}
}

func TestApplyRefreshOnlyWhenRequested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := model.ModeDate
	on := true
	got, err := f.ctrl.Apply(ctx, settings.Patch{DisplayMode: &date, ParallelMode: &on}, false)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.DisplayMode != model.ModeDate || !got.ParallelMode {
		t.Fatalf("generic apply must not normalize, got %+v", got)
	}
	if f.refresher.count() != 0 {
		t.Fatalf("expected no refresh")
	}
	nlt := model.NLT
	if _, err := f.ctrl.Apply(ctx, settings.Patch{Translation: &nlt}, true); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if f.refresher.count() != 1 {
		t.Fatalf("expected one refresh, got %d", f.refresher.count())
	}
}

func TestApplyForwardsWakeWordChange(t *testing.T) {
	f := newFixture(t)
	on := true
	if _, err := f.ctrl.Apply(context.Background(), settings.Patch{WakeWordEnabled: &on}, false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(f.voice.calls) != 1 || !f.voice.calls[0] {
		t.Fatalf("expected wake word forwarded, got %v", f.voice.calls)
	}
}

func TestSetWakeWordVoiceFailureKeepsSetting(t *testing.T) {
	f := newFixture(t)
	f.voice.err = model.ErrUnavailable
	got, err := f.ctrl.SetWakeWord(context.Background(), true)
	if err != nil {
		t.Fatalf("set wake word: %v", err)
	}
	if !got.WakeWordEnabled || !f.ctrl.Settings().WakeWordEnabled {
		t.Fatalf("expected wake word persisted despite voice failure")
	}
}

func TestSetDevotionalInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.ctrl.SetDevotionalInterval(ctx, 7); !errors.Is(err, settings.ErrInvalidInterval) {
		t.Fatalf("expected InvalidInterval, got %v", err)
	}
	if f.ctrl.Settings().DevotionalInterval != 15 {
		t.Fatalf("interval changed after rejection")
	}
	if _, err := f.ctrl.SetDevotionalInterval(ctx, 30); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if f.refresher.count() != 0 {
		t.Fatalf("time mode must not refresh on interval change")
	}
	if _, err := f.ctrl.SetMode(ctx, model.ModeDevotional); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if _, err := f.ctrl.SetDevotionalInterval(ctx, 60); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if f.refresher.count() != 2 {
		t.Fatalf("expected refresh for devotional mode, got %d", f.refresher.count())
	}
}

func TestPersistFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.persist.fail = errors.New("read-only filesystem")
	before := f.ctrl.Settings()
	_, err := f.ctrl.SetMode(context.Background(), model.ModeRandom)
	var perr *settings.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if f.ctrl.Settings() != before || f.refresher.count() != 0 {
		t.Fatalf("failed persist must not change state or refresh")
	}
}
