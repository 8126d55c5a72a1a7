package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keytally/keytally/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// openTestStore opens a migrated file-backed store in a temp directory.
func openTestStore(t *testing.T) (*storage.SQLiteStore, *sql.DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "keytally.db")

	store, db, err := openStoreAt(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	return store, db, dbPath
}

// seedEvent inserts one key event at the given timestamp.
func seedEvent(t *testing.T, store *storage.SQLiteStore, ts time.Time, keyCode int, keyName string, mods storage.Modifier, app string) {
	t.Helper()
	event := &storage.KeyEvent{
		Timestamp:  ts,
		KeyCode:    keyCode,
		KeyName:    keyName,
		Modifiers:  mods,
		IsShortcut: mods.IsShortcut(),
	}
	if app != "" {
		event.AppName = app
		event.AppBundleID = "com.example." + app
	}
	require.NoError(t, store.Append(context.Background(), event))
}
