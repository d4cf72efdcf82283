package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bibleclock.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func TestLoadSettingsEmpty(t *testing.T) {
	st, _ := openTestStore(t)
	_, ok, err := st.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if ok {
		t.Fatalf("expected no persisted settings")
	}
}

func TestSettingsRoundTripAcrossReopen(t *testing.T) {
	st, path := openTestStore(t)
	ctx := context.Background()
	want := model.Settings{
		DisplayMode:          model.ModeDevotional,
		ParallelMode:         true,
		Translation:          model.NLT,
		SecondaryTranslation: model.NLT,
		TimeFormat:           model.TimeFormat24,
		DevotionalInterval:   30,
		WakeWordEnabled:      true,
	}
	if err := st.SaveSettings(ctx, model.DefaultSettings()); err != nil {
		t.Fatalf("save defaults: %v", err)
	}
	if err := st.SaveSettings(ctx, want); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() {
		_ = reopened.Close()
	}()
	got, ok, err := reopened.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if !ok {
		t.Fatalf("expected persisted settings")
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestDailyActivityFillsGaps(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)
	events := []time.Time{
		now.Add(-2 * time.Hour),
		now.Add(-1 * time.Hour),
		now.AddDate(0, 0, -2),
		now.AddDate(0, 0, -10),
	}
	for _, at := range events {
		if _, err := st.InsertDisplayEvent(ctx, model.DisplayEvent{
			ShownAt:     at,
			Mode:        model.ModeTime,
			Translation: model.KJV,
			Book:        "John",
			Reference:   "John 3:16",
		}); err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}
	days, err := st.DailyActivity(ctx, now, 3)
	if err != nil {
		t.Fatalf("daily activity: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	want := []model.DayCount{
		{Day: "2026-03-08", Count: 1},
		{Day: "2026-03-09", Count: 0},
		{Day: "2026-03-10", Count: 2},
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("day %d: got %+v want %+v", i, days[i], want[i])
		}
	}
}

func TestBookAndModeCounts(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	inserts := []model.DisplayEvent{
		{ShownAt: base, Mode: model.ModeTime, Translation: model.KJV, Book: "Psalms"},
		{ShownAt: base.Add(time.Minute), Mode: model.ModeTime, Translation: model.KJV, Book: "Psalms"},
		{ShownAt: base.Add(2 * time.Minute), Mode: model.ModeRandom, Translation: model.AMP, Book: "John"},
		{ShownAt: base.Add(3 * time.Minute), Mode: model.ModeDevotional, Translation: model.KJV, Book: ""},
	}
	for _, ev := range inserts {
		if _, err := st.InsertDisplayEvent(ctx, ev); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	books, err := st.BookCounts(ctx, nil)
	if err != nil {
		t.Fatalf("book counts: %v", err)
	}
	got := map[string]int{}
	for _, bc := range books {
		got[bc.Book] = bc.Count
	}
	if len(got) != 2 || got["Psalms"] != 2 || got["John"] != 1 {
		t.Fatalf("unexpected book counts: %+v", books)
	}

	since := base.Add(90 * time.Second)
	modes, err := st.ModeCounts(ctx, &since)
	if err != nil {
		t.Fatalf("mode counts: %v", err)
	}
	if modes[model.ModeTime] != 0 || modes[model.ModeRandom] != 1 || modes[model.ModeDevotional] != 1 {
		t.Fatalf("unexpected mode counts: %+v", modes)
	}
}

func TestVerseCache(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	if _, ok, err := st.CachedVerse(ctx, model.KJV, "John", 3, 16); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := st.PutVerse(ctx, model.KJV, "John", 3, 16, "For God so loved the world"); err != nil {
		t.Fatalf("put verse: %v", err)
	}
	text, ok, err := st.CachedVerse(ctx, model.KJV, "John", 3, 16)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if text != "For God so loved the world" {
		t.Fatalf("unexpected text %q", text)
	}
	n, err := st.ClearVerseCache(ctx)
	if err != nil {
		t.Fatalf("clear cache: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted row, got %d", n)
	}
	if _, ok, _ := st.CachedVerse(ctx, model.KJV, "John", 3, 16); ok {
		t.Fatalf("expected cache to be empty")
	}
}
