package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/keytally/keytally/internal/storage"
)

type keyCountJSON struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for KeysCommand.
func (c *KeysCommand) Execute(args []string) error {
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

func (c *KeysCommand) executeWithStore(store storage.Store) error {
	day, err := parseDay(c.Day)
	if err != nil {
		return err
	}

	counts, err := store.TopKeys(context.Background(), day, c.App, c.Limit)
	if err != nil {
		return fmt.Errorf("top keys: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]keyCountJSON, len(counts))
		for i, k := range counts {
			out[i] = keyCountJSON{Key: k.KeyName, Count: k.Count}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(counts) == 0 {
		fmt.Println("No key presses recorded.")
		return nil
	}

	for i, k := range counts {
		fmt.Printf("%2d. %-12s %s\n", i+1, k.KeyName, formatNumber(k.Count))
	}
	return nil
}
