package config

import (
	"flag"
	"os"
	"time"

	"github.com/mfsolucoes/backoffice/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   path to the SQLite database file
//	-b int      backup interval in seconds
//	-t int      session ttl in minutes
//
// Arguments are filtered through flagx.FilterArgs so flags owned by other
// packages do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-b", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the database file")
	backupInterval := fs.Int("b", int(cfg.BackupInterval.Seconds()), "backup interval (in seconds)")
	sessionTTL := fs.Int("t", int(cfg.SessionTTL.Minutes()), "session ttl (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.BackupInterval = time.Duration(*backupInterval) * time.Second
	cfg.SessionTTL = time.Duration(*sessionTTL) * time.Minute
}
