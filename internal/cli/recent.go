package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/keytally/keytally/internal/storage"
)

type recentEventJSON struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Key       string `json:"key"`
	Display   string `json:"display"`
	Shortcut  bool   `json:"shortcut"`
	App       string `json:"app,omitempty"`
}

// Execute implements the go-flags Commander interface for RecentCommand.
func (c *RecentCommand) Execute(args []string) error {
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

	return c.executeWithStore(store)
}

func (c *RecentCommand) executeWithStore(store storage.Store) error {
	events, err := store.RecentEvents(context.Background(), c.Limit)
	if err != nil {
		return fmt.Errorf("recent events: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]recentEventJSON, len(events))
		for i, e := range events {
			out[i] = recentEventJSON{
				ID:        e.ID,
				Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
				Key:       e.KeyName,
				Display:   e.DisplayString(),
				Shortcut:  e.IsShortcut,
				App:       e.AppName,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	for _, e := range events {
		app := e.AppName
		if app == "" {
			app = "Unknown"
		}
		fmt.Printf("%s  %-12s %s\n",
			e.Timestamp.Local().Format("15:04:05"), e.DisplayString(), app)
	}
	return nil
}
