package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/pollwatch/internal/flagx"
)

// parseEnv loads the dotenv file named by -env (or ./.env when present)
// into the process environment and then overlays the recognised variables.
// Variables already set in the environment win over the file.
func parseEnv(config *Config, args []string) error {
	if path := flagx.ConfigFiles(args).Env; path != "" {
		if err := godotenv.Load(path); err != nil {
			return err
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if v, ok := os.LookupEnv("GROUP_JIDS"); ok && v != "" {
		config.GroupJIDs = splitList(v)
	}
	lookupString("DB_CONN_STRING", &config.DatabaseDSN)
	lookupString("DB_NAME", &config.DatabaseName)
	lookupString("SESSION_PATH", &config.SessionPath)
	lookupString("MEDIA_SINK", &config.MediaSink)
	lookupString("MEDIA_DIR", &config.MediaDir)
	lookupString("S3_BUCKET", &config.S3Bucket)
	lookupString("S3_PREFIX", &config.S3Prefix)
	lookupString("S3_REGION", &config.S3Region)
	lookupString("S3_ENDPOINT", &config.S3Endpoint)
	lookupString("S3_ACCESS_KEY", &config.S3AccessKey)
	lookupString("S3_SECRET_KEY", &config.S3SecretKey)
	lookupString("MERGE_POLICY", &config.MergePolicy)
	lookupString("HEALTH_ADDR", &config.HealthAddr)
	lookupString("METRICS_ADDR", &config.MetricsAddr)
	lookupString("LOG_LEVEL", &config.LogLevel)

	if v, ok := os.LookupEnv("STORAGE_RETRIES"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("STORAGE_RETRIES: %w", err)
		}
		config.StorageRetries = n
	}
	for name, dst := range map[string]*time.Duration{
		"STORAGE_RETRY_BASE": &config.StorageRetryBase,
		"RECONNECT_BASE":     &config.ReconnectBase,
		"RECONNECT_MAX":      &config.ReconnectMax,
	} {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}
	return nil
}

func lookupString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}
