package verse

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"
)

type fakeSource struct {
	texts map[string]string
	all   bool
	calls int
}

func (f *fakeSource) Verse(_ context.Context, t model.Translation, book string, chapter, verse int) (string, error) {
	f.calls++
	key := fmt.Sprintf("%s|%s|%d|%d", t, book, chapter, verse)
	if text, ok := f.texts[key]; ok {
		return text, nil
	}
	if f.all && t == model.KJV {
		return fmt.Sprintf("text of %s %d:%d", book, chapter, verse), nil
	}
	return "", errors.New("not found")
}

type fakeStructure map[string]int

func (f fakeStructure) MaxVerse(book string, chapter int) (int, bool) {
	n, ok := f[fmt.Sprintf("%s %d", book, chapter)]
	if !ok {
		n, ok = f["*"]
	}
	return n, ok
}

func mustContent(t *testing.T) *Content {
	t.Helper()
	c, err := DefaultContent()
	if err != nil {
		t.Fatalf("default content: %v", err)
	}
	return c
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, time.Local)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func settingsFor(mode model.DisplayMode) model.Settings {
	s := model.DefaultSettings()
	s.DisplayMode = mode
	return s
}

func TestClockChapter(t *testing.T) {
	tests := []struct {
		hour   int
		format model.TimeFormat
		want   int
	}{
		{0, model.TimeFormat12, 12},
		{1, model.TimeFormat12, 1},
		{12, model.TimeFormat12, 12},
		{13, model.TimeFormat12, 1},
		{23, model.TimeFormat12, 11},
		{0, model.TimeFormat24, 24},
		{13, model.TimeFormat24, 13},
		{23, model.TimeFormat24, 23},
	}
	for _, tt := range tests {
		if got := ClockChapter(tt.hour, tt.format); got != tt.want {
			t.Fatalf("ClockChapter(%d, %s) = %d, want %d", tt.hour, tt.format, got, tt.want)
		}
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref     string
		book    string
		chapter int
		verse   int
		ok      bool
	}{
		{"John 3:16", "John", 3, 16, true},
		{"1 John 4:8", "1 John", 4, 8, true},
		{"Psalm 23:1", "Psalms", 23, 1, true},
		{"Lamentations 3:22-23", "Lamentations", 3, 22, true},
		{"Song of Solomon 2:11", "Song of Solomon", 2, 11, true},
		{"John", "", 0, 0, false},
		{"John 3", "", 0, 0, false},
	}
	for _, tt := range tests {
		book, chapter, verse, ok := ParseReference(tt.ref)
		if ok != tt.ok || book != tt.book || chapter != tt.chapter || verse != tt.verse {
			t.Fatalf("ParseReference(%q) = %q %d %d %t", tt.ref, book, chapter, verse, ok)
		}
	}
}

func TestSeasonBoundaries(t *testing.T) {
	tests := map[string]string{
		"2026-03-19 12:00": "winter",
		"2026-03-20 12:00": "spring",
		"2026-06-21 12:00": "summer",
		"2026-09-22 12:00": "autumn",
		"2026-12-20 12:00": "autumn",
		"2026-12-21 12:00": "winter",
		"2026-01-15 12:00": "winter",
	}
	for value, want := range tests {
		if got := Season(at(t, value)); got != want {
			t.Fatalf("Season(%s) = %s, want %s", value, got, want)
		}
	}
}

func TestTimeModeTopOfHourShowsSummary(t *testing.T) {
	sel := NewSelector(mustContent(t), &fakeSource{all: true})
	v := sel.Select(context.Background(), settingsFor(model.ModeTime), at(t, "2026-03-10 15:00"))
	if !v.IsSummary || v.Reference != "03:00 PM" {
		t.Fatalf("expected 12h summary, got %+v", v)
	}
	st := settingsFor(model.ModeTime)
	st.TimeFormat = model.TimeFormat24
	v = sel.Select(context.Background(), st, at(t, "2026-03-10 15:00"))
	if !v.IsSummary || v.Reference != "15:00" || v.TimeFormat != "24" {
		t.Fatalf("expected 24h summary, got %+v", v)
	}
	if v.Text == "" || v.Book == "" {
		t.Fatalf("summary without text: %+v", v)
	}
}

func TestTimeModeMapsClockToReference(t *testing.T) {
	sel := NewSelector(mustContent(t), &fakeSource{all: true})
	v := sel.Select(context.Background(), settingsFor(model.ModeTime), at(t, "2026-03-10 15:16"))
	books := BooksWithChapter(3)
	want := books[(15+16)%len(books)].Name
	if v.Book != want || v.Chapter != 3 || v.Verse != 16 {
		t.Fatalf("expected %s 3:16, got %+v", want, v)
	}
	if v.Reference != want+" 03:16" || v.Translation != "KJV" {
		t.Fatalf("unexpected reference %q / %q", v.Reference, v.Translation)
	}
}

func TestTimeModeUsesStructure(t *testing.T) {
	structure := fakeStructure{"*": 10, "John 3": 36}
	sel := NewSelector(mustContent(t), &fakeSource{all: true}, WithStructure(structure))
	v := sel.Select(context.Background(), settingsFor(model.ModeTime), at(t, "2026-03-10 15:16"))
	if v.Reference != "John 03:16" {
		t.Fatalf("expected John 03:16, got %+v", v)
	}
}

func TestTimeModeSummaryWhenNoBookHasVerse(t *testing.T) {
	src := &fakeSource{all: true}
	sel := NewSelector(mustContent(t), src, WithStructure(fakeStructure{"*": 5}))
	v := sel.Select(context.Background(), settingsFor(model.ModeTime), at(t, "2026-03-10 15:16"))
	books := BooksWithChapter(3)
	if !v.IsSummary || v.Book != books[(15+16)%len(books)].Name || v.Reference != "03:16 PM" {
		t.Fatalf("expected fallback summary, got %+v", v)
	}
	if src.calls != 0 {
		t.Fatalf("expected no lookups, got %d", src.calls)
	}
}

func TestTimeModeBoundsLookups(t *testing.T) {
	src := &fakeSource{}
	sel := NewSelector(mustContent(t), src)
	v := sel.Select(context.Background(), settingsFor(model.ModeTime), at(t, "2026-03-10 09:45"))
	if !v.IsSummary {
		t.Fatalf("expected summary after failed lookups, got %+v", v)
	}
	if src.calls != maxLookupAttempts {
		t.Fatalf("expected %d lookups, got %d", maxLookupAttempts, src.calls)
	}
}

func TestDateModeHierarchy(t *testing.T) {
	sel := NewSelector(mustContent(t), nil)
	tests := []struct {
		when  string
		match string
		name  string
	}{
		{"2026-12-25 00:01", "exact", "Christmas Day"},
		{"2026-03-08 10:00", "weekly", "The Lord's Day"},
		{"2026-11-04 10:00", "monthly", "Thanksgiving"},
		{"2026-07-15 10:00", "seasonal", "Summer"},
	}
	for _, tt := range tests {
		v := sel.Select(context.Background(), settingsFor(model.ModeDate), at(t, tt.when))
		if !v.IsDateEvent || v.DateMatch != tt.match || v.EventName != tt.name {
			t.Fatalf("%s: got match=%q name=%q", tt.when, v.DateMatch, v.EventName)
		}
	}

	v := sel.Select(context.Background(), settingsFor(model.ModeDate), at(t, "2026-12-25 00:01"))
	if v.Reference != "John 3:16" {
		t.Fatalf("expected second Christmas verse at slot 1, got %q", v.Reference)
	}
}

func TestDateModeFallback(t *testing.T) {
	content := &Content{FallbackVerses: []Passage{{Reference: "Psalm 23:1", Text: "The LORD is my shepherd; I shall not want."}}}
	sel := NewSelector(content, nil)
	v := sel.Select(context.Background(), settingsFor(model.ModeDate), at(t, "2026-07-15 10:00"))
	if v.DateMatch != "fallback" || v.EventName != "Daily Blessing for July 15" || v.Book != "Psalms" {
		t.Fatalf("unexpected fallback: %+v", v)
	}
}

func TestDateEventsAreNotPaired(t *testing.T) {
	sel := NewSelector(mustContent(t), &fakeSource{all: true})
	st := settingsFor(model.ModeDate)
	st.ParallelMode = true
	v := sel.Select(context.Background(), st, at(t, "2026-12-25 10:00"))
	if v.ParallelMode || v.SecondaryText != "" {
		t.Fatalf("date event was paired: %+v", v)
	}
}

func TestDevotionalRotation(t *testing.T) {
	content := mustContent(t)
	sel := NewSelector(content, nil)
	now := at(t, "2026-03-10 10:07")
	v := sel.Select(context.Background(), settingsFor(model.ModeDevotional), now)
	slot := (10*60 + 7) / 15
	idx := ((now.YearDay()-1)*96 + slot) % len(content.Devotionals)
	if !v.IsDevotional || v.DevotionalTitle != content.Devotionals[idx].Title {
		t.Fatalf("expected devotional %q, got %+v", content.Devotionals[idx].Title, v)
	}
	if v.NextChangeAt == nil || !v.NextChangeAt.Equal(at(t, "2026-03-10 10:15")) {
		t.Fatalf("unexpected next change: %v", v.NextChangeAt)
	}

	same := sel.Select(context.Background(), settingsFor(model.ModeDevotional), at(t, "2026-03-10 10:14"))
	if same.DevotionalTitle != v.DevotionalTitle {
		t.Fatalf("devotional changed within its slot")
	}
}

func TestRandomModeUsesFallbackVerses(t *testing.T) {
	content := mustContent(t)
	sel := NewSelector(content, nil, WithRand(rand.New(rand.NewSource(1))))
	for i := 0; i < 10; i++ {
		v := sel.Select(context.Background(), settingsFor(model.ModeRandom), time.Now())
		found := false
		for _, p := range content.FallbackVerses {
			if p.Reference == v.Reference && p.Text == v.Text {
				found = true
			}
		}
		if !found {
			t.Fatalf("random verse not from fallback list: %+v", v)
		}
	}
}

func TestRandomModePrefersSourceText(t *testing.T) {
	content := &Content{FallbackVerses: []Passage{{Reference: "John 3:16", Text: "embedded"}}}
	src := &fakeSource{texts: map[string]string{"nlt|John|3|16": "For this is how God loved the world"}}
	sel := NewSelector(content, src)
	st := settingsFor(model.ModeRandom)
	st.Translation = model.NLT
	v := sel.Select(context.Background(), st, time.Now())
	if v.Text != "For this is how God loved the world" || v.Translation != "NLT" {
		t.Fatalf("expected source text, got %+v", v)
	}
}

func TestParallelPairing(t *testing.T) {
	src := &fakeSource{all: true}
	sel := NewSelector(mustContent(t), src, WithStructure(fakeStructure{"*": 10, "John 3": 36}))
	st := settingsFor(model.ModeTime)
	st.ParallelMode = true

	v := sel.Select(context.Background(), st, at(t, "2026-03-10 15:16"))
	if !v.ParallelMode || v.PrimaryTranslation != "KJV" || v.SecondaryTranslation != "AMP" {
		t.Fatalf("unexpected parallel labels: %+v", v)
	}
	if v.SecondaryText != "[AMP - unavailable]" {
		t.Fatalf("expected unavailable marker, got %q", v.SecondaryText)
	}

	src.texts = map[string]string{"amp|John|3|16": "For God so [greatly] loved"}
	v = sel.Select(context.Background(), st, at(t, "2026-03-10 15:16"))
	if v.SecondaryText != "For God so [greatly] loved" {
		t.Fatalf("expected secondary text, got %q", v.SecondaryText)
	}

	v = sel.Select(context.Background(), st, at(t, "2026-03-10 15:00"))
	if !v.IsSummary || v.SecondaryText != v.Text {
		t.Fatalf("summary should reuse primary text: %+v", v)
	}
}

func TestLoadContent(t *testing.T) {
	c, err := LoadContent(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if len(c.FallbackVerses) < 3 || c.FallbackVerses[0].Reference != "John 3:16" {
		t.Fatalf("expected built-in fallback verses, got %+v", c.FallbackVerses)
	}
	if len(c.Summaries) != len(Books) {
		t.Fatalf("expected a summary per book, got %d", len(c.Summaries))
	}

	path := filepath.Join(t.TempDir(), "content.yaml")
	custom := strings.Join([]string{
		"devotionals:",
		"  - title: Custom",
		"    reference: John 1:1",
		"    text: In the beginning was the Word",
	}, "\n")
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err = LoadContent(path)
	if err != nil {
		t.Fatalf("load custom: %v", err)
	}
	if len(c.Devotionals) != 1 || c.Devotionals[0].Title != "Custom" {
		t.Fatalf("expected custom devotionals, got %+v", c.Devotionals)
	}
	if len(c.FallbackVerses) == 0 || len(c.Calendar.Events) == 0 {
		t.Fatalf("missing sections should use built-in content")
	}

	if err := os.WriteFile(path, []byte("devotionals: [\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadContent(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSummaryDefaultText(t *testing.T) {
	c := &Content{}
	if got := c.Summary("Obadiah"); !strings.HasPrefix(got, "Obadiah is a book of the Bible") {
		t.Fatalf("unexpected default summary %q", got)
	}
}
