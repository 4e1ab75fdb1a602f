// Package config loads runtime configuration for the memosync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via flags: -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   memos server address (empty selects the local-only account)
//	-t string   access token
//	-db string  database DSN
//	-driver     database driver: sqlite or pgx
//	-files      directory for attachment files
//	-bucket     S3 bucket for attachment files (overrides -files)
//	-i int      auto-sync interval in seconds, 0 disables
//	-q int      background push queue size
//	-log        log file path (stderr when empty)
//	-v string   log level
//
// # JSON schema
//
// Keys left out of the file keep their default. Intervals use
// timex.Duration, so values can be strings like "90s" or integer
// nanoseconds:
//
//	{
//	  "server_addr": "https://memos.example.com",
//	  "access_token": "eyJhbGciOi...",
//	  "db_driver": "sqlite",
//	  "db_dsn": "/home/me/.config/memosync/memosync.db",
//	  "files_dir": "/home/me/.config/memosync/files",
//	  "s3_bucket": "",
//	  "s3_region": "eu-central-1",
//	  "s3_base_endpoint": "http://127.0.0.1:9000",
//	  "s3_access_key": "",
//	  "s3_secret_key": "",
//	  "push_queue_size": 64,
//	  "background_push": true,
//	  "sync_interval": "5m",
//	  "log_file": "",
//	  "log_level": "info"
//	}
//
// Note: This package does not read environment variables directly; the S3
// store still falls back to the AWS default credential chain when no keys
// are configured.
package config
