package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pollwatch/internal/flagx"
	"github.com/dmitrijs2005/pollwatch/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations accept
// both "250ms" strings and integer nanoseconds. Zero values leave the
// current setting untouched.
type JsonConfig struct {
	GroupJIDs        []string       `json:"group_jids"`
	DatabaseDSN      string         `json:"database_dsn"`
	DatabaseName     string         `json:"database_name"`
	SessionPath      string         `json:"session_path"`
	MediaSink        string         `json:"media_sink"`
	MediaDir         string         `json:"media_dir"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Prefix         string         `json:"s3_prefix"`
	S3Region         string         `json:"s3_region"`
	S3Endpoint       string         `json:"s3_endpoint"`
	S3AccessKey      string         `json:"s3_access_key"`
	S3SecretKey      string         `json:"s3_secret_key"`
	MergePolicy      string         `json:"merge_policy"`
	HealthAddr       string         `json:"health_addr"`
	MetricsAddr      string         `json:"metrics_addr"`
	LogLevel         string         `json:"log_level"`
	StorageRetries   *uint64        `json:"storage_retries"`
	StorageRetryBase timex.Duration `json:"storage_retry_base"`
	ReconnectBase    timex.Duration `json:"reconnect_base"`
	ReconnectMax     timex.Duration `json:"reconnect_max"`
}

// parseJson overlays the file named by -c/-config onto config. Without the
// flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFiles(args).JSON
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	if len(c.GroupJIDs) > 0 {
		config.GroupJIDs = c.GroupJIDs
	}
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.DatabaseName, c.DatabaseName)
	setString(&config.SessionPath, c.SessionPath)
	setString(&config.MediaSink, c.MediaSink)
	setString(&config.MediaDir, c.MediaDir)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Prefix, c.S3Prefix)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3Endpoint, c.S3Endpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.MergePolicy, c.MergePolicy)
	setString(&config.HealthAddr, c.HealthAddr)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.LogLevel, c.LogLevel)
	if c.StorageRetries != nil {
		config.StorageRetries = *c.StorageRetries
	}
	if c.StorageRetryBase.Duration > 0 {
		config.StorageRetryBase = c.StorageRetryBase.Duration
	}
	if c.ReconnectBase.Duration > 0 {
		config.ReconnectBase = c.ReconnectBase.Duration
	}
	if c.ReconnectMax.Duration > 0 {
		config.ReconnectMax = c.ReconnectMax.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
