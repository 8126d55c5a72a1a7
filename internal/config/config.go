// Package config loads and writes the keytally YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where keytally looks for its config file.
const DefaultConfigPath = "~/.config/keytally/config.yaml"

// Config holds all keytally configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Capture   CaptureConfig   `yaml:"capture"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type CaptureConfig struct {
	// QueueSize bounds the async append queue between the event hook and
	// the store; overflow drops the incoming event rather than block.
	QueueSize int `yaml:"queue_size"`
	// StatsRefreshSeconds is how often the in-memory today counters are
	// reconciled against the store.
	StatsRefreshSeconds int `yaml:"stats_refresh_seconds"`
	// ExcludedBundleIDs extends the built-in excluded-application set.
	// Entries here are unioned with the defaults, never replace them.
	ExcludedBundleIDs []string `yaml:"excluded_bundle_ids"`
}

type RetentionConfig struct {
	Days               int `yaml:"days"`
	SweepIntervalHours int `yaml:"sweep_interval_hours"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// Load reads a YAML config file at path and merges it with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path, writing defaults
// first if no file exists yet.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// DatabasePath resolves the full path of the SQLite file.
func (c *Config) DatabasePath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ExcludedSet returns the effective excluded-application set: the built-in
// defaults unioned with any config additions.
func (c *Config) ExcludedSet() map[string]bool {
	set := map[string]bool{}
	for _, id := range DefaultExcludedBundleIDs() {
		set[id] = true
	}
	for _, id := range c.Capture.ExcludedBundleIDs {
		if id != "" {
			set[id] = true
		}
	}
	return set
}
