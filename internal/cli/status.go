package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/keytally/keytally/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version        string         `json:"version"`
	DatabasePath   string         `json:"database_path"`
	DatabaseBytes  int64          `json:"database_size_bytes"`
	TotalEvents    int64          `json:"total_events"`
	TotalShortcuts int64          `json:"total_shortcuts"`
	OldestEvent    string         `json:"oldest_event,omitempty"`
	NewestEvent    string         `json:"newest_event,omitempty"`
	RetentionDays  int            `json:"retention_days"`
	TopApps        []appCountJSON `json:"top_apps"`
}

type appCountJSON struct {
	AppName    string `json:"app_name"`
	Keystrokes int64  `json:"keystrokes"`
	Shortcuts  int64  `json:"shortcuts"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	dbPath, _ := cfg.DatabasePath()
	return c.executeWithStore(store, db, dbPath, cfg.Retention.Days)
}

// executeWithStore runs status against a provided store and db (for testing).
func (c *StatusCommand) executeWithStore(store *storage.SQLiteStore, db *sql.DB, dbPath string, retentionDays int) error {
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbSize := databaseSize(db, dbPath)

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(stats, dbPath, dbSize, retentionDays)
	}
	return c.printHuman(stats, dbPath, dbSize, retentionDays)
}

func (c *StatusCommand) printHuman(stats *storage.Stats, dbPath string, dbSize int64, retentionDays int) error {
	fmt.Println("keytally Status")
	fmt.Println("===============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Events:        %s\n", formatNumber(stats.TotalEvents))

	if stats.TotalEvents > 0 {
		pct := float64(stats.TotalShortcuts) / float64(stats.TotalEvents) * 100
		fmt.Printf("Shortcuts:     %s (%.1f%%)\n", formatNumber(stats.TotalShortcuts), pct)
		fmt.Printf("Oldest:        %s\n", stats.OldestEvent.Local().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestEvent.Local().Format("2006-01-02"))
	} else {
		fmt.Printf("Shortcuts:     %s\n", formatNumber(stats.TotalShortcuts))
	}

	fmt.Printf("Retention:     %d days\n", retentionDays)

	if len(stats.TopApps) > 0 {
		fmt.Println()
		fmt.Println("Top Apps:")
		for _, a := range stats.TopApps {
			fmt.Printf("  %-24s %s\n", a.AppName, formatNumber(a.Keystrokes))
		}
	}

	return nil
}

func (c *StatusCommand) printJSON(stats *storage.Stats, dbPath string, dbSize int64, retentionDays int) error {
	out := statusJSON{
		Version:        c.version,
		DatabasePath:   dbPath,
		DatabaseBytes:  dbSize,
		TotalEvents:    stats.TotalEvents,
		TotalShortcuts: stats.TotalShortcuts,
		RetentionDays:  retentionDays,
		TopApps:        make([]appCountJSON, len(stats.TopApps)),
	}

	if stats.TotalEvents > 0 {
		out.OldestEvent = stats.OldestEvent.UTC().Format(time.RFC3339)
		out.NewestEvent = stats.NewestEvent.UTC().Format(time.RFC3339)
	}

	for i, a := range stats.TopApps {
		out.TopApps[i] = appCountJSON{AppName: a.AppName, Keystrokes: a.Keystrokes, Shortcuts: a.Shortcuts}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
