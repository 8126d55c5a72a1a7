package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       "~/.config/keytally",
			SQLiteFile: "keytally.db",
		},
		Capture: CaptureConfig{
			QueueSize:           256,
			StatsRefreshSeconds: 60,
			ExcludedBundleIDs:   []string{},
		},
		Retention: RetentionConfig{
			Days:               7,
			SweepIntervalHours: 6,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "production",
		},
	}
}
