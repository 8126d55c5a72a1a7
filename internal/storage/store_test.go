package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore creates a migrated in-memory store. Day queries use UTC so
// the tests are not sensitive to the host timezone.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	store, err := NewSQLiteStore(db, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// appendAt inserts an event with the given timestamp and key, returning it.
func appendAt(t *testing.T, store *SQLiteStore, ts time.Time, key string, mods Modifier, app string) *KeyEvent {
	t.Helper()
	event := &KeyEvent{
		Timestamp:  ts,
		KeyCode:    keyCodeFor(key),
		KeyName:    key,
		Modifiers:  mods,
		IsShortcut: mods.IsShortcut(),
		AppName:    app,
	}
	if app != "" {
		event.AppBundleID = "com.example." + app
	}
	require.NoError(t, store.Append(context.Background(), event))
	return event
}

// keyCodeFor gives stable fake codes; the store never derives names itself.
func keyCodeFor(key string) int {
	codes := map[string]int{"A": 0, "B": 11, "C": 8}
	return codes[key]
}

func TestAppend_RecentEvents_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2025, 3, 10, 9, 15, 42, 123_000_000, time.UTC)
	event := &KeyEvent{
		Timestamp:   ts,
		KeyCode:     8,
		KeyName:     "C",
		Modifiers:   ModCommand,
		IsShortcut:  true,
		AppName:     "Finder",
		AppBundleID: "com.apple.finder",
	}

	require.NoError(t, store.Append(ctx, event))
	assert.Greater(t, event.ID, int64(0), "append should assign the row id")

	events, err := store.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, event.ID, got.ID)
	assert.True(t, ts.Equal(got.Timestamp), "timestamp should survive with millisecond precision: %v != %v", ts, got.Timestamp)
	assert.Equal(t, 8, got.KeyCode)
	assert.Equal(t, "C", got.KeyName)
	assert.Equal(t, ModCommand, got.Modifiers)
	assert.True(t, got.IsShortcut)
	assert.Equal(t, "Finder", got.AppName)
	assert.Equal(t, "com.apple.finder", got.AppBundleID)
}

func TestAppend_IDsIncreaseWithInsertionOrder(t *testing.T) {
	store := openTestStore(t)
	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	first := appendAt(t, store, ts, "A", 0, "Finder")
	second := appendAt(t, store, ts.Add(time.Second), "B", 0, "Finder")

	assert.Greater(t, second.ID, first.ID)
}

func TestAppend_NilAppStoredAsNull(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	appendAt(t, store, ts, "A", 0, "")

	events, err := store.RecentEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].AppName)
	assert.Empty(t, events[0].AppBundleID)

	// NULL groups as the Unknown sentinel.
	apps, err := store.AppCounts(ctx, ts)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Unknown", apps[0].AppName)
}

func TestRecentEvents_NewestFirstAndBounded(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		appendAt(t, store, base.Add(time.Duration(i)*time.Minute), "A", 0, "Finder")
	}

	events, err := store.RecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[0].Timestamp.After(events[1].Timestamp))
	assert.True(t, events[1].Timestamp.After(events[2].Timestamp))
}

// The canonical day scenario: 09:00 plain A, 09:30 ⌘C, 10:15 plain A,
// all in Finder.
func TestDayScenario_CountsHourlyAndShortcuts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	appendAt(t, store, day.Add(9*time.Hour), "A", 0, "Finder")
	appendAt(t, store, day.Add(9*time.Hour+30*time.Minute), "C", ModCommand, "Finder")
	appendAt(t, store, day.Add(10*time.Hour+15*time.Minute), "A", 0, "Finder")

	start, end := store.DayRange(day)

	total, err := store.CountInRange(ctx, start, end, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	onlyShortcuts := true
	shortcuts, err := store.CountInRange(ctx, start, end, &onlyShortcuts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), shortcuts)

	hourly, err := store.HourlyCounts(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []HourlyCount{{Hour: 9, Count: 2}, {Hour: 10, Count: 1}}, hourly)

	top, err := store.TopShortcuts(ctx, day, "", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "⌘C", top[0].Display)
	assert.Equal(t, "C", top[0].KeyName)
	assert.Equal(t, ModCommand, top[0].Modifiers)
	assert.Equal(t, int64(1), top[0].Count)
}

func TestTopKeys_ExcludesShortcuts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ts := day.Add(12 * time.Hour)

	for i := 0; i < 5; i++ {
		appendAt(t, store, ts.Add(time.Duration(i)*time.Second), "A", 0, "Finder")
	}
	for i := 0; i < 3; i++ {
		appendAt(t, store, ts.Add(time.Duration(i)*time.Second), "A", ModCommand, "Finder")
	}
	for i := 0; i < 2; i++ {
		appendAt(t, store, ts.Add(time.Duration(i)*time.Second), "B", 0, "Finder")
	}

	keys, err := store.TopKeys(ctx, day, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []KeyCount{{KeyName: "A", Count: 5}, {KeyName: "B", Count: 2}}, keys)
}

func TestTopKeys_AppFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ts := day.Add(12 * time.Hour)

	appendAt(t, store, ts, "A", 0, "Finder")
	appendAt(t, store, ts, "B", 0, "Safari")

	keys, err := store.TopKeys(ctx, day, "Safari", 10)
	require.NoError(t, err)
	assert.Equal(t, []KeyCount{{KeyName: "B", Count: 1}}, keys)
}

func TestAppCounts_DescendingWithShortcutTotals(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ts := day.Add(12 * time.Hour)

	appendAt(t, store, ts, "A", 0, "Safari")
	appendAt(t, store, ts, "A", 0, "Safari")
	appendAt(t, store, ts, "C", ModCommand, "Safari")
	appendAt(t, store, ts, "A", 0, "Finder")

	apps, err := store.AppCounts(ctx, day)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, AppCount{AppName: "Safari", Keystrokes: 3, Shortcuts: 1}, apps[0])
	assert.Equal(t, AppCount{AppName: "Finder", Keystrokes: 1, Shortcuts: 0}, apps[1])
}

func TestDistinctApps_SortedWithUnknown(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ts := day.Add(12 * time.Hour)

	appendAt(t, store, ts, "A", 0, "Safari")
	appendAt(t, store, ts, "A", 0, "Finder")
	appendAt(t, store, ts, "A", 0, "")

	apps, err := store.DistinctApps(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"Finder", "Safari", "Unknown"}, apps)
}

func TestKeyFrequencyMap_IncludesShortcuts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ts := day.Add(12 * time.Hour)

	appendAt(t, store, ts, "A", 0, "Finder")
	appendAt(t, store, ts, "A", ModCommand, "Finder")
	appendAt(t, store, ts, "B", 0, "Finder")

	freq, err := store.KeyFrequencyMap(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 2, "B": 1}, freq)
}

func TestDayBoundary_EventsBucketSeparately(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	lateNight := time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)
	earlyMorning := time.Date(2025, 3, 11, 0, 0, 1, 0, time.UTC)

	appendAt(t, store, lateNight, "A", 0, "Finder")
	appendAt(t, store, earlyMorning, "B", 0, "Finder")

	day1Start, day1End := store.DayRange(lateNight)
	day2Start, day2End := store.DayRange(earlyMorning)

	count1, err := store.CountInRange(ctx, day1Start, day1End, nil)
	require.NoError(t, err)
	count2, err := store.CountInRange(ctx, day2Start, day2End, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), count1)
	assert.Equal(t, int64(1), count2)

	freq1, err := store.KeyFrequencyMap(ctx, lateNight)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 1}, freq1)

	freq2, err := store.KeyFrequencyMap(ctx, earlyMorning)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"B": 1}, freq2)
}

func TestPurgeOlderThan_DeletesAndIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cutoff := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	appendAt(t, store, old, "A", 0, "Finder")
	appendAt(t, store, recent, "B", 0, "Finder")

	n, err := store.PurgeOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Second sweep with the same cutoff removes nothing.
	n, err = store.PurgeOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	events, err := store.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "B", events[0].KeyName)
}

func TestStats_TotalsAndRange(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalEvents)
	assert.Equal(t, int64(0), stats.TotalShortcuts)

	first := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	last := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	appendAt(t, store, first, "A", 0, "Finder")
	appendAt(t, store, last, "C", ModCommand, "Safari")

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalEvents)
	assert.Equal(t, int64(1), stats.TotalShortcuts)
	assert.True(t, first.Equal(stats.OldestEvent))
	assert.True(t, last.Equal(stats.NewestEvent))
	require.Len(t, stats.TopApps, 2)
}

func TestCountInRange_HalfOpenInterval(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	appendAt(t, store, start, "A", 0, "Finder")               // included
	appendAt(t, store, end.Add(-time.Millisecond), "B", 0, "") // included
	appendAt(t, store, end, "C", 0, "")                        // excluded

	count, err := store.CountInRange(ctx, start, end, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
