// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const dayLayout = "2006-01-02"

// Store wraps SQLite access for settings, display history and cached verses.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps settings writes and history inserts from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			display_mode TEXT NOT NULL,
			parallel_mode INTEGER NOT NULL,
			translation TEXT NOT NULL,
			secondary_translation TEXT NOT NULL,
			time_format TEXT NOT NULL,
			devotional_interval INTEGER NOT NULL,
			wake_word_enabled INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS display_events (
			id INTEGER PRIMARY KEY,
			shown_at TEXT NOT NULL,
			day TEXT NOT NULL,
			mode TEXT NOT NULL,
			translation TEXT NOT NULL,
			book TEXT NOT NULL,
			reference TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS verse_cache (
			translation TEXT NOT NULL,
			book TEXT NOT NULL,
			chapter INTEGER NOT NULL,
			verse INTEGER NOT NULL,
			text TEXT NOT NULL,
			cached_at TEXT NOT NULL,
			PRIMARY KEY (translation, book, chapter, verse)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_display_events_day ON display_events(day);`,
		`CREATE INDEX IF NOT EXISTS idx_display_events_book ON display_events(book);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadSettings returns the persisted settings. ok is false when nothing has been saved yet.
func (s *Store) LoadSettings(ctx context.Context) (settings model.Settings, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT display_mode, parallel_mode, translation, secondary_translation, time_format, devotional_interval, wake_word_enabled
		 FROM settings WHERE id = 1`)
	var mode, translation, secondary, timeFormat string
	var parallel, wakeWord int
	err = row.Scan(&mode, &parallel, &translation, &secondary, &timeFormat, &settings.DevotionalInterval, &wakeWord)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, false, nil
	}
	if err != nil {
		return model.Settings{}, false, fmt.Errorf("load settings: %w", err)
	}
	settings.DisplayMode = model.DisplayMode(mode)
	settings.ParallelMode = parallel != 0
	settings.Translation = model.Translation(translation)
	settings.SecondaryTranslation = model.Translation(secondary)
	settings.TimeFormat = model.TimeFormat(timeFormat)
	settings.WakeWordEnabled = wakeWord != 0
	return settings, true, nil
}

// SaveSettings upserts the single settings row.
func (s *Store) SaveSettings(ctx context.Context, settings model.Settings) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, display_mode, parallel_mode, translation, secondary_translation, time_format, devotional_interval, wake_word_enabled, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			display_mode = excluded.display_mode,
			parallel_mode = excluded.parallel_mode,
			translation = excluded.translation,
			secondary_translation = excluded.secondary_translation,
			time_format = excluded.time_format,
			devotional_interval = excluded.devotional_interval,
			wake_word_enabled = excluded.wake_word_enabled,
			updated_at = excluded.updated_at`,
		string(settings.DisplayMode),
		boolInt(settings.ParallelMode),
		string(settings.Translation),
		string(settings.SecondaryTranslation),
		string(settings.TimeFormat),
		settings.DevotionalInterval,
		boolInt(settings.WakeWordEnabled),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// InsertDisplayEvent appends one verse display to the history.
func (s *Store) InsertDisplayEvent(ctx context.Context, ev model.DisplayEvent) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO display_events (shown_at, day, mode, translation, book, reference)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ShownAt.Format(time.RFC3339Nano),
		ev.ShownAt.Format(dayLayout),
		string(ev.Mode),
		string(ev.Translation),
		ev.Book,
		ev.Reference,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DailyActivity returns per-day display counts for the last days days, oldest first.
// Days without displays are included with a zero count.
func (s *Store) DailyActivity(ctx context.Context, now time.Time, days int) ([]model.DayCount, error) {
	if days <= 0 {
		return nil, nil
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, COUNT(*) FROM display_events
		 WHERE day >= ?
		 GROUP BY day`, start.Format(dayLayout))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	counts := map[string]int{}
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		counts[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]model.DayCount, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format(dayLayout)
		result = append(result, model.DayCount{Day: day, Count: counts[day]})
	}
	return result, nil
}

// BookCounts aggregates display counts per book since the given time (nil for all history).
func (s *Store) BookCounts(ctx context.Context, since *time.Time) ([]model.BookCount, error) {
	query := `SELECT book, COUNT(*) FROM display_events WHERE book != ''`
	args := []any{}
	if since != nil {
		query += ` AND shown_at >= ?`
		args = append(args, since.Format(time.RFC3339Nano))
	}
	query += ` GROUP BY book`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.BookCount
	for rows.Next() {
		var bc model.BookCount
		if err := rows.Scan(&bc.Book, &bc.Count); err != nil {
			return nil, err
		}
		result = append(result, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ModeCounts aggregates display counts per mode since the given time (nil for all history).
func (s *Store) ModeCounts(ctx context.Context, since *time.Time) (map[model.DisplayMode]int, error) {
	query := `SELECT mode, COUNT(*) FROM display_events`
	args := []any{}
	if since != nil {
		query += ` WHERE shown_at >= ?`
		args = append(args, since.Format(time.RFC3339Nano))
	}
	query += ` GROUP BY mode`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[model.DisplayMode]int{}
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, err
		}
		result[model.DisplayMode(mode)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CachedVerse returns a cached verse text. ok is false on a miss.
func (s *Store) CachedVerse(ctx context.Context, translation model.Translation, book string, chapter, verse int) (text string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT text FROM verse_cache WHERE translation = ? AND book = ? AND chapter = ? AND verse = ?`,
		string(translation), book, chapter, verse)
	err = row.Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// PutVerse stores a verse text in the cache, replacing any previous entry.
func (s *Store) PutVerse(ctx context.Context, translation model.Translation, book string, chapter, verse int, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO verse_cache (translation, book, chapter, verse, text, cached_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(translation), book, chapter, verse, text, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// ClearVerseCache removes every cached verse and returns how many were deleted.
func (s *Store) ClearVerseCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM verse_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
