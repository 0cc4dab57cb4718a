package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mfsolucoes/backoffice/internal/flagx"
	"github.com/mfsolucoes/backoffice/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations may
// be written either as strings like "5m" or as integer nanoseconds.
type JsonConfig struct {
	DatabasePath   string         `json:"database_path"`
	BackupInterval timex.Duration `json:"backup_interval"`
	SessionTTL     timex.Duration `json:"session_ttl"`
}

// parseJson overlays cfg with values from the JSON file named by the -c or
// -config flag. When no such flag is given, nothing happens. Read or parse
// errors panic; startup configuration must be correct or absent.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.BackupInterval.Duration != 0 {
		cfg.BackupInterval = time.Duration(jc.BackupInterval.Duration)
	}
	if jc.SessionTTL.Duration != 0 {
		cfg.SessionTTL = time.Duration(jc.SessionTTL.Duration)
	}
}
