// Package cli wires the keytally command-line surface.
package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Run       *RunCommand
	Status    *StatusCommand
	Recent    *RecentCommand
	Stats     *StatsCommand
	Keys      *KeysCommand
	Shortcuts *ShortcutsCommand
	Heatmap   *HeatmapCommand
	Prune     *PruneCommand
	Purge     *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "keytally"
	parser.LongDescription = "Local keystroke statistics agent: captures, classifies, and aggregates key events."

	cmds := &commands{
		Run:       &RunCommand{globals: &globals, version: version},
		Status:    &StatusCommand{globals: &globals, version: version},
		Recent:    &RecentCommand{globals: &globals, version: version},
		Stats:     &StatsCommand{globals: &globals, version: version},
		Keys:      &KeysCommand{globals: &globals, version: version},
		Shortcuts: &ShortcutsCommand{globals: &globals, version: version},
		Heatmap:   &HeatmapCommand{globals: &globals, version: version},
		Prune:     &PruneCommand{globals: &globals, version: version},
		Purge:     &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("run", "Start the capture agent", "Start the keystroke capture agent in the foreground until interrupted.", cmds.Run)
	parser.AddCommand("status", "Show database statistics", "Show event totals, database size, and retention summary.", cmds.Status)
	parser.AddCommand("recent", "List recent key events", "List the most recently recorded key events, newest first.", cmds.Recent)
	parser.AddCommand("stats", "Show a day's statistics", "Show a day's totals, hourly histogram, and per-application counts.", cmds.Stats)
	parser.AddCommand("keys", "Rank most pressed keys", "Rank the most pressed plain (non-shortcut) keys for a day.", cmds.Keys)
	parser.AddCommand("shortcuts", "Rank most used shortcuts", "Rank the most used keyboard shortcuts for a day.", cmds.Shortcuts)
	parser.AddCommand("heatmap", "Dump per-key frequency map", "Dump the per-key frequency map for a day (heatmap input).", cmds.Heatmap)
	parser.AddCommand("prune", "Apply retention pruning", "Delete events older than the retention period.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL recorded events", "Delete ALL recorded events. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the keytally CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("keytally %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
