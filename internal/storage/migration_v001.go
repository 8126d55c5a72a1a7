package storage

import "database/sql"

// migrateV001 creates the initial keytally schema. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// One row per recorded keystroke. app_name and app_bundle_id are
		// NULL together when no frontmost app was resolvable.
		`CREATE TABLE IF NOT EXISTS key_events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			ts            TEXT NOT NULL,
			key_code      INTEGER NOT NULL,
			key_name      TEXT NOT NULL,
			modifiers     INTEGER NOT NULL,
			is_shortcut   BOOLEAN NOT NULL,
			app_name      TEXT,
			app_bundle_id TEXT
		)`,

		// Reserved for future pre-aggregation; not written by the core.
		`CREATE TABLE IF NOT EXISTS daily_stats (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			date               TEXT NOT NULL UNIQUE,
			total_keystrokes   INTEGER NOT NULL DEFAULT 0,
			total_shortcuts    INTEGER NOT NULL DEFAULT 0,
			most_used_key      TEXT,
			most_used_shortcut TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_key_events_ts       ON key_events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_key_events_app_name ON key_events(app_name)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
