package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/keytally/keytally/internal/storage"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
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

	retention := time.Duration(cfg.Retention.Days) * 24 * time.Hour
	return c.executeWithStore(store, retention)
}

func (c *PruneCommand) executeWithStore(store storage.Store, retention time.Duration) error {
	ctx := context.Background()

	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
		retention = d
	}

	cutoff := time.Now().Add(-retention)

	if c.DryRun {
		count, err := store.CountInRange(ctx, time.Time{}, cutoff, nil)
		if err != nil {
			return fmt.Errorf("count prunable events: %w", err)
		}
		fmt.Printf("Would delete %s events older than %s\n",
			formatNumber(count), cutoff.Local().Format("2006-01-02 15:04"))
		return nil
	}

	n, err := store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune events: %w", err)
	}

	fmt.Printf("Deleted %s events older than %s\n",
		formatNumber(n), cutoff.Local().Format("2006-01-02 15:04"))
	return nil
}
