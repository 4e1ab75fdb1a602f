package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/memosync/internal/flagx"
	"github.com/dmitrijs2005/memosync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It is
// prefilled from the current Config so absent keys keep their value.
type JsonConfig struct {
	ServerAddr     string         `json:"server_addr"`
	AccessToken    string         `json:"access_token"`
	DBDriver       string         `json:"db_driver"`
	DBDSN          string         `json:"db_dsn"`
	FilesDir       string         `json:"files_dir"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	PushQueueSize  int            `json:"push_queue_size"`
	BackgroundPush bool           `json:"background_push"`
	SyncInterval   timex.Duration `json:"sync_interval"`
	LogFile        string         `json:"log_file"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	jc := JsonConfig{
		ServerAddr:     cfg.ServerAddr,
		AccessToken:    cfg.AccessToken,
		DBDriver:       cfg.DBDriver,
		DBDSN:          cfg.DBDSN,
		FilesDir:       cfg.FilesDir,
		S3Bucket:       cfg.S3Bucket,
		S3Region:       cfg.S3Region,
		S3BaseEndpoint: cfg.S3BaseEndpoint,
		S3AccessKey:    cfg.S3AccessKey,
		S3SecretKey:    cfg.S3SecretKey,
		PushQueueSize:  cfg.PushQueueSize,
		BackgroundPush: cfg.BackgroundPush,
		SyncInterval:   timex.Duration{Duration: cfg.SyncInterval},
		LogFile:        cfg.LogFile,
		LogLevel:       cfg.LogLevel,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerAddr = jc.ServerAddr
	cfg.AccessToken = jc.AccessToken
	cfg.DBDriver = jc.DBDriver
	cfg.DBDSN = jc.DBDSN
	cfg.FilesDir = jc.FilesDir
	cfg.S3Bucket = jc.S3Bucket
	cfg.S3Region = jc.S3Region
	cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	cfg.S3AccessKey = jc.S3AccessKey
	cfg.S3SecretKey = jc.S3SecretKey
	cfg.PushQueueSize = jc.PushQueueSize
	cfg.BackgroundPush = jc.BackgroundPush
	cfg.SyncInterval = jc.SyncInterval.Duration
	cfg.LogFile = jc.LogFile
	cfg.LogLevel = jc.LogLevel
}
