// Package verse picks the passage shown for a display mode and moment.
package verse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// Source looks up the text of a single verse.
type Source interface {
	Verse(ctx context.Context, t model.Translation, book string, chapter, verse int) (string, error)
}

// Structure reports how many verses a chapter has when that is known locally.
type Structure interface {
	MaxVerse(book string, chapter int) (int, bool)
}

// maxLookupAttempts bounds source lookups for one time-mode selection.
const maxLookupAttempts = 3

var errNoSource = errors.New("no verse source configured")

// Selector chooses verses. It is safe for concurrent use.
type Selector struct {
	content   *Content
	source    Source
	structure Structure

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithStructure lets time mode skip books whose chapter is too short.
func WithStructure(st Structure) Option {
	return func(s *Selector) {
		s.structure = st
	}
}

// WithRand replaces the random source used by random mode.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		s.rnd = r
	}
}

// NewSelector returns a Selector seeded with the current time.
func NewSelector(content *Content, source Source, opts ...Option) *Selector {
	s := &Selector{
		content: content,
		source:  source,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the verse for settings at now. It always yields something
// displayable; lookup failures degrade to summaries or fallback verses.
func (s *Selector) Select(ctx context.Context, st model.Settings, now time.Time) model.Verse {
	var v model.Verse
	switch st.DisplayMode {
	case model.ModeDevotional:
		v = s.devotional(ctx, st, now)
	case model.ModeDate:
		v = s.dateVerse(st, now)
	case model.ModeRandom:
		v = s.random(ctx, st.Translation)
	default:
		v = s.timeVerse(ctx, st, now)
	}
	v.TimeFormat = string(st.TimeFormat)
	if st.ParallelMode {
		s.pair(ctx, &v, st)
	}
	return v
}

// ClockChapter maps an hour of the day to a chapter number.
func ClockChapter(hour int, format model.TimeFormat) int {
	if format == model.TimeFormat24 {
		if hour == 0 {
			return 24
		}
		return hour
	}
	switch {
	case hour == 0:
		return 12
	case hour > 12:
		return hour - 12
	}
	return hour
}

// ClockLabel formats now the way the display shows the time.
func ClockLabel(now time.Time, format model.TimeFormat) string {
	if format == model.TimeFormat24 {
		return now.Format("15:04")
	}
	return now.Format("03:04 PM")
}

func (s *Selector) timeVerse(ctx context.Context, st model.Settings, now time.Time) model.Verse {
	chapter := ClockChapter(now.Hour(), st.TimeFormat)
	minute := now.Minute()
	if minute == 0 {
		return s.summary(s.summaryBook(now), now, st)
	}
	candidates := BooksWithChapter(chapter)
	if len(candidates) == 0 {
		return s.random(ctx, st.Translation)
	}

	matches := make([]Book, 0, len(candidates))
	for _, b := range candidates {
		if s.mayHaveVerse(b.Name, chapter, minute) {
			matches = append(matches, b)
		}
	}
	seed := now.Hour() + minute
	if len(matches) == 0 {
		return s.summary(candidates[seed%len(candidates)].Name, now, st)
	}

	attempts := min(maxLookupAttempts, len(matches))
	for i := 0; i < attempts; i++ {
		book := matches[(seed+i)%len(matches)]
		text, err := s.lookup(ctx, st.Translation, book.Name, chapter, minute)
		if err != nil {
			log.Printf("verse: lookup %s %d:%d failed: %v", book.Name, chapter, minute, err)
			continue
		}
		return model.Verse{
			Reference:   fmt.Sprintf("%s %02d:%02d", book.Name, chapter, minute),
			Text:        text,
			Book:        book.Name,
			Chapter:     chapter,
			Verse:       minute,
			Translation: translationLabel(st.Translation),
		}
	}
	return s.summary(matches[seed%len(matches)].Name, now, st)
}

func (s *Selector) mayHaveVerse(book string, chapter, verse int) bool {
	if s.structure == nil {
		return true
	}
	n, ok := s.structure.MaxVerse(book, chapter)
	if !ok {
		return true
	}
	return verse <= n
}

// summaryBook rotates through the canon once per hour.
func (s *Selector) summaryBook(now time.Time) string {
	idx := ((now.YearDay()-1)*24 + now.Hour()) % len(Books)
	return Books[idx].Name
}

func (s *Selector) summary(book string, now time.Time, st model.Settings) model.Verse {
	return model.Verse{
		Reference:   ClockLabel(now, st.TimeFormat),
		Text:        s.content.Summary(book),
		Book:        book,
		Translation: translationLabel(st.Translation),
		IsSummary:   true,
	}
}

func (s *Selector) dateVerse(st model.Settings, now time.Time) model.Verse {
	slot := now.Hour()*60 + now.Minute()
	events, match := s.content.Calendar.lookup(now)
	for i := range events {
		ev := events[(slot+i)%len(events)]
		if len(ev.Verses) == 0 {
			continue
		}
		p := ev.Verses[slot%len(ev.Verses)]
		v := s.passage(p, st.Translation)
		v.IsDateEvent = true
		v.EventName = ev.Title
		v.EventDescription = ev.Description
		v.DateMatch = match
		return v
	}

	if len(s.content.FallbackVerses) == 0 {
		return model.Verse{Translation: translationLabel(st.Translation)}
	}
	p := s.content.FallbackVerses[slot%len(s.content.FallbackVerses)]
	v := s.passage(p, st.Translation)
	v.IsDateEvent = true
	v.EventName = "Daily Blessing for " + now.Format("January 02")
	v.EventDescription = "A verse for today"
	v.DateMatch = "fallback"
	return v
}

func (c Calendar) lookup(now time.Time) ([]Event, string) {
	if ev := c.Events[now.Format("01-02")]; len(ev) > 0 {
		return ev, "exact"
	}
	if ev := c.WeeklyThemes[strings.ToLower(now.Weekday().String())]; len(ev) > 0 {
		return ev, "weekly"
	}
	if ev := c.MonthlyThemes[strings.ToLower(now.Month().String())]; len(ev) > 0 {
		return ev, "monthly"
	}
	if ev := c.SeasonalThemes[Season(now)]; len(ev) > 0 {
		return ev, "seasonal"
	}
	return nil, ""
}

// Season returns the northern-hemisphere season for t.
func Season(t time.Time) string {
	md := int(t.Month())*100 + t.Day()
	switch {
	case md >= 1221 || md < 320:
		return "winter"
	case md < 621:
		return "spring"
	case md < 922:
		return "summer"
	default:
		return "autumn"
	}
}

func (s *Selector) devotional(ctx context.Context, st model.Settings, now time.Time) model.Verse {
	if len(s.content.Devotionals) == 0 {
		return s.random(ctx, st.Translation)
	}
	interval := st.DevotionalInterval
	if interval <= 0 {
		interval = model.DefaultSettings().DevotionalInterval
	}
	slot := (now.Hour()*60 + now.Minute()) / interval
	slotsPerDay := (24*60 + interval - 1) / interval
	idx := ((now.YearDay()-1)*slotsPerDay + slot) % len(s.content.Devotionals)
	d := s.content.Devotionals[idx]

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	next := midnight.Add(time.Duration((slot+1)*interval) * time.Minute)
	book, chapter, verse, _ := ParseReference(d.Reference)
	return model.Verse{
		Reference:       d.Reference,
		Text:            d.Text,
		Book:            book,
		Chapter:         chapter,
		Verse:           verse,
		Translation:     translationLabel(st.Translation),
		IsDevotional:    true,
		DevotionalTitle: d.Title,
		Author:          d.Author,
		Source:          d.Source,
		NextChangeAt:    &next,
	}
}

func (s *Selector) random(ctx context.Context, t model.Translation) model.Verse {
	if len(s.content.FallbackVerses) == 0 {
		return model.Verse{Translation: translationLabel(t)}
	}
	s.mu.Lock()
	p := s.content.FallbackVerses[s.rnd.Intn(len(s.content.FallbackVerses))]
	s.mu.Unlock()

	v := s.passage(p, t)
	if v.Book == "" {
		return v
	}
	if text, err := s.lookup(ctx, t, v.Book, v.Chapter, v.Verse); err == nil {
		v.Text = text
	}
	return v
}

func (s *Selector) passage(p Passage, t model.Translation) model.Verse {
	book, chapter, verse, _ := ParseReference(p.Reference)
	return model.Verse{
		Reference:   p.Reference,
		Text:        p.Text,
		Book:        book,
		Chapter:     chapter,
		Verse:       verse,
		Translation: translationLabel(t),
	}
}

// pair fills the secondary column. Date events stay single-column.
func (s *Selector) pair(ctx context.Context, v *model.Verse, st model.Settings) {
	if v.IsDateEvent {
		return
	}
	v.ParallelMode = true
	v.PrimaryTranslation = translationLabel(st.Translation)
	v.SecondaryTranslation = translationLabel(st.SecondaryTranslation)
	if v.IsSummary || v.IsDevotional || v.Book == "" {
		v.SecondaryText = v.Text
		return
	}
	text, err := s.lookup(ctx, st.SecondaryTranslation, v.Book, v.Chapter, v.Verse)
	if err != nil {
		log.Printf("verse: secondary %s lookup for %s failed: %v", st.SecondaryTranslation, v.Reference, err)
		v.SecondaryText = fmt.Sprintf("[%s - unavailable]", v.SecondaryTranslation)
		return
	}
	v.SecondaryText = text
}

func (s *Selector) lookup(ctx context.Context, t model.Translation, book string, chapter, verse int) (string, error) {
	if s.source == nil {
		return "", errNoSource
	}
	text, err := s.source.Verse(ctx, t, book, chapter, verse)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty text for %s %d:%d", book, chapter, verse)
	}
	return text, nil
}

// ParseReference splits "1 John 4:8" or "Lamentations 3:22-23" into its
// book, chapter and first verse.
func ParseReference(ref string) (book string, chapter, verse int, ok bool) {
	ref = strings.TrimSpace(ref)
	i := strings.LastIndex(ref, " ")
	if i <= 0 {
		return "", 0, 0, false
	}
	book = strings.TrimSpace(ref[:i])
	chStr, vStr, found := strings.Cut(ref[i+1:], ":")
	if !found {
		return "", 0, 0, false
	}
	if j := strings.IndexAny(vStr, "-,"); j >= 0 {
		vStr = vStr[:j]
	}
	chapter, err := strconv.Atoi(chStr)
	if err != nil {
		return "", 0, 0, false
	}
	verse, err = strconv.Atoi(vStr)
	if err != nil {
		return "", 0, 0, false
	}
	if b, known := LookupBook(book); known {
		book = b.Name
	}
	return book, chapter, verse, true
}

func translationLabel(t model.Translation) string {
	return strings.ToUpper(string(t))
}
