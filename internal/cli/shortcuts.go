package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/keytally/keytally/internal/storage"
)

type shortcutCountJSON struct {
	Display   string `json:"display"`
	Key       string `json:"key"`
	Modifiers int    `json:"modifiers"`
	Count     int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for ShortcutsCommand.
func (c *ShortcutsCommand) Execute(args []string) error {
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

func (c *ShortcutsCommand) executeWithStore(store storage.Store) error {
	day, err := parseDay(c.Day)
	if err != nil {
		return err
	}

	counts, err := store.TopShortcuts(context.Background(), day, c.App, c.Limit)
	if err != nil {
		return fmt.Errorf("top shortcuts: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]shortcutCountJSON, len(counts))
		for i, s := range counts {
			out[i] = shortcutCountJSON{
				Display:   s.Display,
				Key:       s.KeyName,
				Modifiers: int(s.Modifiers),
				Count:     s.Count,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(counts) == 0 {
		fmt.Println("No shortcuts recorded.")
		return nil
	}

	for i, s := range counts {
		fmt.Printf("%2d. %-12s %s\n", i+1, s.Display, formatNumber(s.Count))
	}
	return nil
}
