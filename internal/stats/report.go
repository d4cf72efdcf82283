package stats

import (
	"context"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"
)

const defaultTopBooks = 10

// HistoryStore is the persisted display history.
type HistoryStore interface {
	HistorySource
	BookCounts(ctx context.Context, since *time.Time) ([]model.BookCount, error)
	ModeCounts(ctx context.Context, since *time.Time) (map[model.DisplayMode]int, error)
}

// Report contains precomputed data for history rendering.
type Report struct {
	Days      []model.DayCount
	Books     []model.BookCount
	BooksSeen int
	Modes     map[model.DisplayMode]int
	Total     int
}

// BuildReport loads and prepares display history for rendering.
func BuildReport(ctx context.Context, st HistoryStore, cfg model.StatsConfig, now time.Time) (Report, error) {
	days := cfg.Days
	if days <= 0 {
		days = defaultHistoryDays
	}
	daily, err := st.DailyActivity(ctx, now, days)
	if err != nil {
		return Report{}, err
	}
	books, err := st.BookCounts(ctx, cfg.Since)
	if err != nil {
		return Report{}, err
	}
	modes, err := st.ModeCounts(ctx, cfg.Since)
	if err != nil {
		return Report{}, err
	}
	total := 0
	for _, c := range modes {
		total += c
	}
	top := cfg.TopBooks
	if top <= 0 {
		top = defaultTopBooks
	}
	return Report{
		Days:      daily,
		Books:     TopBooks(books, top),
		BooksSeen: len(books),
		Modes:     modes,
		Total:     total,
	}, nil
}
