package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/keytally/keytally/internal/storage"
)

type dayStatsJSON struct {
	Day        string         `json:"day"`
	Keystrokes int64          `json:"keystrokes"`
	Shortcuts  int64          `json:"shortcuts"`
	Hourly     []hourlyJSON   `json:"hourly"`
	Apps       []appCountJSON `json:"apps"`
}

type hourlyJSON struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
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

func (c *StatsCommand) executeWithStore(store storage.Store) error {
	ctx := context.Background()

	day, err := parseDay(c.Day)
	if err != nil {
		return err
	}
	start, end := store.DayRange(day)

	total, err := store.CountInRange(ctx, start, end, nil)
	if err != nil {
		return fmt.Errorf("count keystrokes: %w", err)
	}
	onlyShortcuts := true
	shortcuts, err := store.CountInRange(ctx, start, end, &onlyShortcuts)
	if err != nil {
		return fmt.Errorf("count shortcuts: %w", err)
	}
	hourly, err := store.HourlyCounts(ctx, day)
	if err != nil {
		return fmt.Errorf("hourly counts: %w", err)
	}
	apps, err := store.AppCounts(ctx, day)
	if err != nil {
		return fmt.Errorf("app counts: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := dayStatsJSON{
			Day:        start.Format("2006-01-02"),
			Keystrokes: total,
			Shortcuts:  shortcuts,
			Hourly:     make([]hourlyJSON, len(hourly)),
			Apps:       make([]appCountJSON, len(apps)),
		}
		for i, h := range hourly {
			out.Hourly[i] = hourlyJSON{Hour: h.Hour, Count: h.Count}
		}
		for i, a := range apps {
			out.Apps[i] = appCountJSON{AppName: a.AppName, Keystrokes: a.Keystrokes, Shortcuts: a.Shortcuts}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Stats for %s\n", start.Format("2006-01-02"))
	fmt.Printf("Keystrokes:  %s\n", formatNumber(total))
	fmt.Printf("Shortcuts:   %s\n", formatNumber(shortcuts))

	if len(hourly) > 0 {
		fmt.Println()
		fmt.Println("By hour:")
		max := int64(1)
		for _, h := range hourly {
			if h.Count > max {
				max = h.Count
			}
		}
		for _, h := range hourly {
			bar := strings.Repeat("█", int(h.Count*40/max))
			fmt.Printf("  %02d:00  %6s  %s\n", h.Hour, formatNumber(h.Count), bar)
		}
	}

	if len(apps) > 0 {
		fmt.Println()
		fmt.Println("By app:")
		for _, a := range apps {
			fmt.Printf("  %-24s %6s keys, %s shortcuts\n",
				a.AppName, formatNumber(a.Keystrokes), formatNumber(a.Shortcuts))
		}
	}

	return nil
}
