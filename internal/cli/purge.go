package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/keytally/keytally/internal/storage"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all to confirm intent")
	}

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

	return c.executeWithStore(store, os.Stdin)
}

func (c *PurgeCommand) executeWithStore(store storage.Store, in *os.File) error {
	if !c.Force {
		fmt.Print("This deletes ALL recorded key events. Type 'yes' to continue: ")
		reader := bufio.NewReader(in)
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Everything ever recorded is strictly older than one day from now.
	cutoff := time.Now().Add(24 * time.Hour)
	n, err := store.PurgeOlderThan(context.Background(), cutoff)
	if err != nil {
		return fmt.Errorf("purge events: %w", err)
	}

	fmt.Printf("Deleted %s events.\n", formatNumber(n))
	return nil
}
