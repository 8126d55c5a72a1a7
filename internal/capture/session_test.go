package capture

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keytally/keytally/internal/storage"
)

// openTestStore creates a migrated in-memory store for session tests.
func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())

	store, err := storage.NewSQLiteStore(db, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// fakeSource is a synthetic KeyEventSource driven by Emit.
type fakeSource struct {
	ch chan RawEvent

	mu      sync.Mutex
	started bool
	stopped bool
	paused  bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan RawEvent, 64)}
}

func (f *fakeSource) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.ch)
	}
	return nil
}

func (f *fakeSource) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}

func (f *fakeSource) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}

func (f *fakeSource) Events() <-chan RawEvent { return f.ch }

func (f *fakeSource) Emit(ev RawEvent) { f.ch <- ev }

// deniedProbe always reports the permission as missing.
type deniedProbe struct{ requested atomic.Bool }

func (p *deniedProbe) Granted() bool { return false }
func (p *deniedProbe) Request()      { p.requested.Store(true) }

// secureFlag is a toggleable SecureInputProbe.
type secureFlag struct{ on atomic.Bool }

func (s *secureFlag) probe() bool { return s.on.Load() }

func newTestSession(t *testing.T, store *storage.SQLiteStore, secure *secureFlag, resolver AppResolver) (*Session, *fakeSource) {
	t.Helper()
	if secure == nil {
		secure = &secureFlag{}
	}
	if resolver == nil {
		resolver = stubResolver{name: "Finder", bundleID: "com.apple.finder", ok: true}
	}
	source := newFakeSource()
	policy := NewPolicy(map[string]bool{"com.1password.1password": true}, resolver, secure.probe)
	session := NewSession(source, store, policy, nil, nil, Options{
		RefreshInterval: time.Hour, // keep the tickers quiet during tests
		SweepInterval:   time.Hour,
	})
	t.Cleanup(func() { _ = session.Stop() })
	return session, source
}

func countToday(t *testing.T, store *storage.SQLiteStore) int64 {
	t.Helper()
	start, end := store.DayRange(time.Now())
	n, err := store.CountInRange(context.Background(), start, end, nil)
	require.NoError(t, err)
	return n
}

func TestSession_StartDeniedPermission(t *testing.T) {
	store := openTestStore(t)
	source := newFakeSource()
	policy := NewPolicy(nil, nil, nil)
	probe := &deniedProbe{}
	session := NewSession(source, store, policy, probe, nil, Options{})

	err := session.Start(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateStopped, session.State())

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.False(t, source.started, "source must not start without permission")
}

func TestSession_RecordsAcceptedEvents(t *testing.T) {
	store := openTestStore(t)
	session, source := newTestSession(t, store, nil, nil)

	require.NoError(t, session.Start(context.Background()))
	assert.Equal(t, StateRunning, session.State())

	now := time.Now()
	source.Emit(RawEvent{KeyCode: 0, Time: now})                                // A
	source.Emit(RawEvent{KeyCode: 8, Modifiers: storage.ModCommand, Time: now}) // ⌘C
	source.Emit(RawEvent{KeyCode: 0, Time: now})                                // A

	assert.Eventually(t, func() bool {
		return session.TodayKeystrokes() == 3 && session.TodayShortcuts() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(3), countToday(t, store))
}

func TestSession_DropsFilteredEvents(t *testing.T) {
	store := openTestStore(t)
	secure := &secureFlag{}
	session, source := newTestSession(t, store, secure, nil)

	require.NoError(t, session.Start(context.Background()))

	// Bare modifier press.
	source.Emit(RawEvent{KeyCode: 55, Time: time.Now()})

	// Secure input active.
	secure.on.Store(true)
	source.Emit(RawEvent{KeyCode: 0, Time: time.Now()})
	secure.on.Store(false)

	// Then one accepted event so we know the earlier ones were processed.
	source.Emit(RawEvent{KeyCode: 0, Time: time.Now()})

	assert.Eventually(t, func() bool {
		return session.TodayKeystrokes() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), countToday(t, store))
}

func TestSession_ExcludedAppNeverStored(t *testing.T) {
	store := openTestStore(t)
	resolver := stubResolver{name: "1Password", bundleID: "com.1password.1password", ok: true}
	session, source := newTestSession(t, store, nil, resolver)

	require.NoError(t, session.Start(context.Background()))

	source.Emit(RawEvent{KeyCode: 0, Time: time.Now()})
	source.Emit(RawEvent{KeyCode: 8, Modifiers: storage.ModCommand, Time: time.Now()})

	require.NoError(t, session.Stop()) // drains the pipeline
	assert.Equal(t, int64(0), countToday(t, store))
	assert.Equal(t, int64(0), session.TodayKeystrokes())
}

func TestSession_PauseSuppressesRecording(t *testing.T) {
	store := openTestStore(t)
	session, source := newTestSession(t, store, nil, nil)

	require.NoError(t, session.Start(context.Background()))

	session.Pause()
	assert.Equal(t, StatePaused, session.State())

	source.Emit(RawEvent{KeyCode: 0, Time: time.Now()})
	time.Sleep(100 * time.Millisecond) // let the loop drop it
	assert.Equal(t, int64(0), countToday(t, store))

	session.Resume()
	assert.Equal(t, StateRunning, session.State())

	source.Emit(RawEvent{KeyCode: 0, Time: time.Now()})
	assert.Eventually(t, func() bool {
		return session.TodayKeystrokes() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_StartIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	session, _ := newTestSession(t, store, nil, nil)

	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Start(context.Background()))
	assert.Equal(t, StateRunning, session.State())
}

func TestSession_StopIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	session, _ := newTestSession(t, store, nil, nil)

	require.NoError(t, session.Stop()) // never started

	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Stop())
	assert.Equal(t, StateStopped, session.State())
	require.NoError(t, session.Stop())
}

func TestSession_StopDrainsPendingAppends(t *testing.T) {
	store := openTestStore(t)
	session, source := newTestSession(t, store, nil, nil)

	require.NoError(t, session.Start(context.Background()))

	for i := 0; i < 10; i++ {
		source.Emit(RawEvent{KeyCode: 0, Time: time.Now()})
	}

	assert.Eventually(t, func() bool {
		return session.TodayKeystrokes() == 10
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, session.Stop())
	assert.Equal(t, int64(10), countToday(t, store))
}

func TestSession_RefreshStatsReconciles(t *testing.T) {
	store := openTestStore(t)
	session, _ := newTestSession(t, store, nil, nil)
	ctx := context.Background()

	// Events written outside the session, e.g. before it started.
	now := time.Now()
	for i, mods := range []storage.Modifier{0, storage.ModCommand, 0} {
		event := &storage.KeyEvent{
			Timestamp:  now.Add(time.Duration(i) * time.Millisecond),
			KeyCode:    0,
			KeyName:    "A",
			Modifiers:  mods,
			IsShortcut: mods.IsShortcut(),
		}
		require.NoError(t, store.Append(ctx, event))
	}

	session.RefreshStats(ctx)
	assert.Equal(t, int64(3), session.TodayKeystrokes())
	assert.Equal(t, int64(1), session.TodayShortcuts())
}

func TestSession_StartSweepsOldEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := &storage.KeyEvent{
		Timestamp: time.Now().Add(-8 * 24 * time.Hour),
		KeyCode:   0,
		KeyName:   "A",
	}
	require.NoError(t, store.Append(ctx, old))

	session, _ := newTestSession(t, store, nil, nil)
	require.NoError(t, session.Start(ctx))

	events, err := store.RecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events, "events past retention are purged at startup")
}

func TestSession_CountersSeededFromStoreOnStart(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	event := &storage.KeyEvent{Timestamp: time.Now(), KeyCode: 0, KeyName: "A"}
	require.NoError(t, store.Append(ctx, event))

	session, _ := newTestSession(t, store, nil, nil)
	require.NoError(t, session.Start(ctx))

	assert.Equal(t, int64(1), session.TodayKeystrokes())
}
