package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// MaxActivities is how many recent activities the runtime retains.
const MaxActivities = 50

// Runtime holds per-run counters. It is written by the render loop and the
// mode controller and read by status snapshots.
type Runtime struct {
	mu sync.RWMutex

	startTime        time.Time
	versesDisplayed  int
	versesToday      int
	today            string
	modeUsage        map[model.DisplayMode]int
	translationUsage map[model.Translation]int
	books            map[string]struct{}
	activities       []model.Activity
}

// RuntimeSnapshot is a copy of the runtime counters.
type RuntimeSnapshot struct {
	StartTime        time.Time
	VersesDisplayed  int
	VersesToday      int
	ModeUsage        map[model.DisplayMode]int
	TranslationUsage map[model.Translation]int
	BooksAccessed    []string
	Activities       []model.Activity
}

// NewRuntime creates zeroed counters for a run that started at start.
func NewRuntime(start time.Time) *Runtime {
	return &Runtime{
		startTime:        start,
		modeUsage:        map[model.DisplayMode]int{},
		translationUsage: map[model.Translation]int{},
		books:            map[string]struct{}{},
	}
}

// StartTime returns when the run started.
func (r *Runtime) StartTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startTime
}

// RecordDisplay counts one shown verse. The daily counter resets when the
// event falls on a different local day than the previous one.
func (r *Runtime) RecordDisplay(ev model.DisplayEvent) {
	day := ev.ShownAt.Format(dayLayout)
	r.mu.Lock()
	defer r.mu.Unlock()
	if day != r.today {
		r.today = day
		r.versesToday = 0
	}
	r.versesToday++
	r.versesDisplayed++
	if ev.Mode != "" {
		r.modeUsage[ev.Mode]++
	}
	if ev.Translation != "" {
		r.translationUsage[ev.Translation]++
	}
	if ev.Book != "" {
		r.books[ev.Book] = struct{}{}
	}
}

// Track prepends an activity to the log.
func (r *Runtime) Track(action, details string) model.Activity {
	return r.TrackAt(time.Now(), action, details)
}

// TrackAt prepends an activity with an explicit timestamp.
func (r *Runtime) TrackAt(at time.Time, action, details string) model.Activity {
	activity := model.Activity{
		ID:        uuid.NewString(),
		Timestamp: at,
		Action:    action,
		Details:   details,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, model.Activity{})
	copy(r.activities[1:], r.activities)
	r.activities[0] = activity
	if len(r.activities) > MaxActivities {
		r.activities = r.activities[:MaxActivities]
	}
	return activity
}

// Activities returns up to limit most-recent-first activities. limit <= 0 returns all retained.
func (r *Runtime) Activities(limit int) []model.Activity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.activities)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Activity, n)
	copy(out, r.activities[:n])
	return out
}

// Snapshot copies the counters. VersesToday is zero when nothing has been
// shown on now's local day.
func (r *Runtime) Snapshot(now time.Time) RuntimeSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := RuntimeSnapshot{
		StartTime:        r.startTime,
		VersesDisplayed:  r.versesDisplayed,
		ModeUsage:        make(map[model.DisplayMode]int, len(r.modeUsage)),
		TranslationUsage: make(map[model.Translation]int, len(r.translationUsage)),
		BooksAccessed:    make([]string, 0, len(r.books)),
		Activities:       make([]model.Activity, len(r.activities)),
	}
	if r.today == now.Format(dayLayout) {
		snap.VersesToday = r.versesToday
	}
	for k, v := range r.modeUsage {
		snap.ModeUsage[k] = v
	}
	for k, v := range r.translationUsage {
		snap.TranslationUsage[k] = v
	}
	for book := range r.books {
		snap.BooksAccessed = append(snap.BooksAccessed, book)
	}
	sort.Strings(snap.BooksAccessed)
	copy(snap.Activities, r.activities)
	return snap
}
