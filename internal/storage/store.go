// Package storage persists accepted key events to SQLite and serves the
// aggregate queries the stats surfaces are built from.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotInitialized is returned when an operation runs against a store
// whose database has not been opened and migrated.
var ErrNotInitialized = errors.New("storage: store not initialized")

// tsLayout is the stored timestamp format: fixed-width UTC with millisecond
// precision, so lexical comparison in SQL matches time order.
const tsLayout = "2006-01-02T15:04:05.000Z"

// Store defines the interface for keytally data operations.
type Store interface {
	Append(ctx context.Context, event *KeyEvent) error
	CountInRange(ctx context.Context, start, end time.Time, onlyShortcuts *bool) (int64, error)
	RecentEvents(ctx context.Context, limit int) ([]KeyEvent, error)
	HourlyCounts(ctx context.Context, day time.Time) ([]HourlyCount, error)
	AppCounts(ctx context.Context, day time.Time) ([]AppCount, error)
	TopKeys(ctx context.Context, day time.Time, appName string, limit int) ([]KeyCount, error)
	TopShortcuts(ctx context.Context, day time.Time, appName string, limit int) ([]ShortcutCount, error)
	DistinctApps(ctx context.Context, day time.Time) ([]string, error)
	KeyFrequencyMap(ctx context.Context, day time.Time) (map[string]int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	DayRange(day time.Time) (start, end time.Time)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database. Writes arrive
// from a single queue worker; SQLite's own locking is the defensive layer
// underneath that discipline.
type SQLiteStore struct {
	db *sql.DB

	// loc fixes the calendar used for day-bucketed queries. It is captured
	// once at construction so day windows cannot drift between calls.
	loc *time.Location

	insertEvent  *sql.Stmt
	countRange   *sql.Stmt
	recentEvents *sql.Stmt
}

// NewSQLiteStore creates a SQLiteStore from an already-opened and migrated
// database. Day-bucketed queries use loc; pass nil for the system local zone.
func NewSQLiteStore(db *sql.DB, loc *time.Location) (*SQLiteStore, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &SQLiteStore{db: db, loc: loc}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEvent, err = s.db.Prepare(`
		INSERT INTO key_events (ts, key_code, key_name, modifiers, is_shortcut, app_name, app_bundle_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.countRange, err = s.db.Prepare(`
		SELECT COUNT(*) FROM key_events
		WHERE ts >= ? AND ts < ? AND (? = 0 OR is_shortcut = 1)
	`)
	if err != nil {
		return err
	}

	s.recentEvents, err = s.db.Prepare(`
		SELECT id, ts, key_code, key_name, modifiers, is_shortcut, app_name, app_bundle_id
		FROM key_events ORDER BY ts DESC, id DESC LIMIT ?
	`)
	if err != nil {
		return err
	}

	return nil
}

// DayRange returns [start of day, start of next day) for day in the store's
// fixed location.
func (s *SQLiteStore) DayRange(day time.Time) (time.Time, time.Time) {
	d := day.In(s.loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, s.loc)
	return start, end
}

// formatTS renders a timestamp in the stored column format.
func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// parseTimestamp tries the stored format plus common SQLite variants.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		tsLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Append inserts an event and writes the assigned row id back onto it.
// A zero Timestamp is filled with the current time.
func (s *SQLiteStore) Append(ctx context.Context, event *KeyEvent) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	res, err := s.insertEvent.ExecContext(ctx,
		formatTS(event.Timestamp), event.KeyCode, event.KeyName,
		int(event.Modifiers), event.IsShortcut,
		nullable(event.AppName), nullable(event.AppBundleID),
	)
	if err != nil {
		return fmt.Errorf("insert key event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("event row id: %w", err)
	}
	event.ID = id

	return nil
}

// CountInRange counts events in [start, end). When onlyShortcuts is non-nil
// and true, only shortcut events are counted.
func (s *SQLiteStore) CountInRange(ctx context.Context, start, end time.Time, onlyShortcuts *bool) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}

	shortcutsOnly := 0
	if onlyShortcuts != nil && *onlyShortcuts {
		shortcutsOnly = 1
	}

	var count int64
	err := s.countRange.QueryRowContext(ctx,
		formatTS(start), formatTS(end), shortcutsOnly,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// RecentEvents returns the newest events, newest first.
func (s *SQLiteStore) RecentEvents(ctx context.Context, limit int) ([]KeyEvent, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.recentEvents.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents reads key_events rows into KeyEvent values.
func scanEvents(rows *sql.Rows) ([]KeyEvent, error) {
	events := []KeyEvent{}
	for rows.Next() {
		var e KeyEvent
		var tsStr string
		var modifiers int
		var appName, bundleID sql.NullString
		if err := rows.Scan(
			&e.ID, &tsStr, &e.KeyCode, &e.KeyName,
			&modifiers, &e.IsShortcut, &appName, &bundleID,
		); err != nil {
			return nil, fmt.Errorf("scan key event: %w", err)
		}
		ts, err := parseTimestamp(tsStr)
		if err != nil {
			return nil, err
		}
		e.Timestamp = ts
		e.Modifiers = Modifier(modifiers)
		e.AppName = appName.String
		e.AppBundleID = bundleID.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// HourlyCounts returns per-hour event counts for the given day. Only hours
// with at least one event appear; callers treat missing hours as zero.
func (s *SQLiteStore) HourlyCounts(ctx context.Context, day time.Time) ([]HourlyCount, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	start, end := s.DayRange(day)

	// Timestamps are stored in UTC, so the hour bucket has to be computed in
	// the store's location rather than with strftime.
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts
		FROM key_events
		WHERE ts >= ? AND ts < ?
	`, formatTS(start), formatTS(end))
	if err != nil {
		return nil, fmt.Errorf("hourly counts: %w", err)
	}
	defer rows.Close()

	var byHour [24]int64
	for rows.Next() {
		var tsStr string
		if err := rows.Scan(&tsStr); err != nil {
			return nil, err
		}
		ts, err := parseTimestamp(tsStr)
		if err != nil {
			return nil, err
		}
		byHour[ts.In(s.loc).Hour()]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var counts []HourlyCount
	for hour, count := range byHour {
		if count > 0 {
			counts = append(counts, HourlyCount{Hour: hour, Count: count})
		}
	}
	return counts, nil
}

// AppCounts returns keystroke and shortcut totals per application for the
// given day, descending by keystrokes. Events with no app group as "Unknown".
func (s *SQLiteStore) AppCounts(ctx context.Context, day time.Time) ([]AppCount, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	start, end := s.DayRange(day)

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(app_name, 'Unknown') AS app_name,
		       COUNT(*) AS keystrokes,
		       SUM(CASE WHEN is_shortcut = 1 THEN 1 ELSE 0 END) AS shortcuts
		FROM key_events
		WHERE ts >= ? AND ts < ?
		GROUP BY app_name
		ORDER BY keystrokes DESC, app_name
	`, formatTS(start), formatTS(end))
	if err != nil {
		return nil, fmt.Errorf("app counts: %w", err)
	}
	defer rows.Close()

	var counts []AppCount
	for rows.Next() {
		var c AppCount
		if err := rows.Scan(&c.AppName, &c.Keystrokes, &c.Shortcuts); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TopKeys returns the most pressed keys for a day over non-shortcut events
// only, descending by count. An empty appName disables the app filter.
func (s *SQLiteStore) TopKeys(ctx context.Context, day time.Time, appName string, limit int) ([]KeyCount, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 15
	}
	start, end := s.DayRange(day)

	query := `
		SELECT key_name, COUNT(*) AS count
		FROM key_events
		WHERE ts >= ? AND ts < ? AND is_shortcut = 0
	`
	args := []interface{}{formatTS(start), formatTS(end)}
	if appName != "" {
		query += " AND app_name = ?"
		args = append(args, appName)
	}
	query += " GROUP BY key_name ORDER BY count DESC, key_name LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top keys: %w", err)
	}
	defer rows.Close()

	var counts []KeyCount
	for rows.Next() {
		var c KeyCount
		if err := rows.Scan(&c.KeyName, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TopShortcuts returns the most used shortcuts for a day, grouped by
// (key, modifiers), descending by count. An empty appName disables the
// app filter.
func (s *SQLiteStore) TopShortcuts(ctx context.Context, day time.Time, appName string, limit int) ([]ShortcutCount, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 15
	}
	start, end := s.DayRange(day)

	query := `
		SELECT key_name, modifiers, COUNT(*) AS count
		FROM key_events
		WHERE ts >= ? AND ts < ? AND is_shortcut = 1
	`
	args := []interface{}{formatTS(start), formatTS(end)}
	if appName != "" {
		query += " AND app_name = ?"
		args = append(args, appName)
	}
	query += " GROUP BY key_name, modifiers ORDER BY count DESC, key_name LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top shortcuts: %w", err)
	}
	defer rows.Close()

	var counts []ShortcutCount
	for rows.Next() {
		var c ShortcutCount
		var modifiers int
		if err := rows.Scan(&c.KeyName, &modifiers, &c.Count); err != nil {
			return nil, err
		}
		c.Modifiers = Modifier(modifiers)
		c.Display = c.Modifiers.String() + c.KeyName
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// DistinctApps returns the applications seen on a day, ascending by name,
// with no-app events reported as "Unknown".
func (s *SQLiteStore) DistinctApps(ctx context.Context, day time.Time) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	start, end := s.DayRange(day)

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT COALESCE(app_name, 'Unknown') AS app_name
		FROM key_events
		WHERE ts >= ? AND ts < ?
		ORDER BY app_name
	`, formatTS(start), formatTS(end))
	if err != nil {
		return nil, fmt.Errorf("distinct apps: %w", err)
	}
	defer rows.Close()

	var apps []string
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// KeyFrequencyMap returns key name -> count over all events of a day,
// shortcut or not. Heatmap consumers index it directly.
func (s *SQLiteStore) KeyFrequencyMap(ctx context.Context, day time.Time) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	start, end := s.DayRange(day)

	rows, err := s.db.QueryContext(ctx, `
		SELECT key_name, COUNT(*) AS count
		FROM key_events
		WHERE ts >= ? AND ts < ?
		GROUP BY key_name
	`, formatTS(start), formatTS(end))
	if err != nil {
		return nil, fmt.Errorf("key frequency map: %w", err)
	}
	defer rows.Close()

	freq := map[string]int64{}
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		freq[name] = count
	}
	return freq, rows.Err()
}

// PurgeOlderThan deletes all events with timestamps before cutoff and
// returns the number of rows removed. Idempotent for a fixed cutoff.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM key_events WHERE ts < ?", formatTS(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns aggregate totals over the whole event log.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN is_shortcut = 1 THEN 1 ELSE 0 END)
		FROM key_events
	`).Scan(&stats.TotalEvents, &nullableInt64{&stats.TotalShortcuts})
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	if stats.TotalEvents > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx,
			"SELECT MIN(ts), MAX(ts) FROM key_events",
		).Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("event time range: %w", err)
		}
		stats.OldestEvent, _ = parseTimestamp(oldestStr)
		stats.NewestEvent, _ = parseTimestamp(newestStr)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(app_name, 'Unknown') AS app_name,
		       COUNT(*) AS keystrokes,
		       SUM(CASE WHEN is_shortcut = 1 THEN 1 ELSE 0 END) AS shortcuts
		FROM key_events
		GROUP BY app_name
		ORDER BY keystrokes DESC, app_name
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("top apps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c AppCount
		if err := rows.Scan(&c.AppName, &c.Keystrokes, &c.Shortcuts); err != nil {
			return nil, err
		}
		stats.TopApps = append(stats.TopApps, c)
	}

	return stats, rows.Err()
}

// nullableInt64 scans a SUM() result that is NULL on an empty table.
type nullableInt64 struct{ v *int64 }

func (n *nullableInt64) Scan(src interface{}) error {
	var ns sql.NullInt64
	if err := ns.Scan(src); err != nil {
		return err
	}
	*n.v = ns.Int64
	return nil
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{s.insertEvent, s.countRange, s.recentEvents}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
