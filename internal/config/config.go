// Package config loads runtime settings for the backoffice console.
// Values come from defaults, then an optional JSON file, then command-line
// flags; later sources win.
package config

import "time"

// Config holds runtime settings.
//
// Fields:
//   - DatabasePath: SQLite file backing the slot store.
//   - BackupInterval: how often the preservation keeper snapshots the store.
//   - SessionTTL: validity of a signed session token.
type Config struct {
	DatabasePath   string
	BackupInterval time.Duration
	SessionTTL     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "backoffice.db"
	c.BackupInterval = 5 * time.Minute
	c.SessionTTL = 12 * time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
