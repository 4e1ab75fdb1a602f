package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the memosync CLI.
//
// ServerAddr and AccessToken select the remote account; with no server
// address the CLI works in the local-only account. SyncInterval of zero
// turns off periodic sync.
type Config struct {
	ServerAddr  string
	AccessToken string

	DBDriver string
	DBDSN    string
	FilesDir string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	PushQueueSize  int
	BackgroundPush bool
	SyncInterval   time.Duration

	LogFile  string
	LogLevel string
}

// dataDir is where the default database and files live.
func dataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "memosync")
	}
	return ".memosync"
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	dir := dataDir()
	c.DBDriver = "sqlite"
	c.DBDSN = filepath.Join(dir, "memosync.db")
	c.FilesDir = filepath.Join(dir, "files")
	c.PushQueueSize = 64
	c.BackgroundPush = true
	c.SyncInterval = 5 * time.Minute
	c.LogLevel = "info"
}

// UsesS3 reports whether attachments go to a bucket instead of FilesDir.
func (c *Config) UsesS3() bool {
	return c.S3Bucket != ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
