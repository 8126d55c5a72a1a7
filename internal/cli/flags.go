package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// RunCommand — start the capture agent in the foreground.
type RunCommand struct {
	globals *GlobalFlags
	version string
}

// StatusCommand — show database statistics and retention summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// RecentCommand — list the latest recorded key events.
type RecentCommand struct {
	Limit int `long:"limit" description:"Maximum events to show" default:"20"`

	globals *GlobalFlags
	version string
}

// StatsCommand — show a day's totals, hourly histogram, and per-app counts.
type StatsCommand struct {
	Day string `long:"day" description:"Day to report (YYYY-MM-DD, default today)"`

	globals *GlobalFlags
	version string
}

// KeysCommand — rank the most pressed plain keys for a day.
type KeysCommand struct {
	Day   string `long:"day" description:"Day to report (YYYY-MM-DD, default today)"`
	App   string `long:"app" description:"Filter by application name"`
	Limit int    `long:"limit" description:"Maximum keys to show" default:"15"`

	globals *GlobalFlags
	version string
}

// ShortcutsCommand — rank the most used shortcuts for a day.
type ShortcutsCommand struct {
	Day   string `long:"day" description:"Day to report (YYYY-MM-DD, default today)"`
	App   string `long:"app" description:"Filter by application name"`
	Limit int    `long:"limit" description:"Maximum shortcuts to show" default:"15"`

	globals *GlobalFlags
	version string
}

// HeatmapCommand — dump the per-key frequency map for a day.
type HeatmapCommand struct {
	Day string `long:"day" description:"Day to report (YYYY-MM-DD, default today)"`

	globals *GlobalFlags
	version string
}

// PruneCommand — delete events older than the retention period.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 7d, 24h)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand — delete ALL recorded events with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
}
