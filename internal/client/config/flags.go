package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/memosync/internal/flagx"
)

var ownFlags = []string{"-a", "-t", "-db", "-driver", "-files", "-bucket", "-i", "-q", "-log", "-v"}

// parseFlags populates Config fields from command-line flags. Arguments
// it does not own are filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], ownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "memos server address")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.DBDSN, "db", cfg.DBDSN, "database DSN")
	fs.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "database driver (sqlite or pgx)")
	fs.StringVar(&cfg.FilesDir, "files", cfg.FilesDir, "directory for attachment files")
	fs.StringVar(&cfg.S3Bucket, "bucket", cfg.S3Bucket, "S3 bucket for attachment files")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "auto-sync interval (in seconds, 0 disables)")
	fs.IntVar(&cfg.PushQueueSize, "q", cfg.PushQueueSize, "background push queue size")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file (stderr when empty)")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
