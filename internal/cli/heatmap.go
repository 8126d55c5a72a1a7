package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/keytally/keytally/internal/storage"
)

// Execute implements the go-flags Commander interface for HeatmapCommand.
func (c *HeatmapCommand) Execute(args []string) error {
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

func (c *HeatmapCommand) executeWithStore(store storage.Store) error {
	day, err := parseDay(c.Day)
	if err != nil {
		return err
	}

	freq, err := store.KeyFrequencyMap(context.Background(), day)
	if err != nil {
		return fmt.Errorf("key frequency map: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(freq)
	}

	if len(freq) == 0 {
		fmt.Println("No key presses recorded.")
		return nil
	}

	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Printf("%-12s %s\n", k, formatNumber(freq[k]))
	}
	return nil
}
