package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"group_jids":         []string{groupA, groupB},
		"database_dsn":       "mongodb://mongo:27017",
		"database_name":      "votes",
		"session_path":       "/var/lib/bot/session.db",
		"media_sink":         "s3",
		"s3_bucket":          "media",
		"s3_prefix":          "wa/",
		"s3_endpoint":        "http://minio:9000",
		"merge_policy":       "accumulate",
		"metrics_addr":       "",
		"storage_retries":    0,
		"storage_retry_base": "50ms",
		"reconnect_max":      int64(30 * time.Second),
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", path}))

		assert.Equal(t, []string{groupA, groupB}, cfg.GroupJIDs)
		assert.Equal(t, "mongodb://mongo:27017", cfg.DatabaseDSN)
		assert.Equal(t, "votes", cfg.DatabaseName)
		assert.Equal(t, "/var/lib/bot/session.db", cfg.SessionPath)
		assert.Equal(t, SinkS3, cfg.MediaSink)
		assert.Equal(t, "media", cfg.S3Bucket)
		assert.Equal(t, "wa/", cfg.S3Prefix)
		assert.Equal(t, "http://minio:9000", cfg.S3Endpoint)
		assert.Equal(t, "accumulate", cfg.MergePolicy)
		assert.Equal(t, uint64(0), cfg.StorageRetries, "explicit zero is kept")
		assert.Equal(t, 50*time.Millisecond, cfg.StorageRetryBase)
		assert.Equal(t, 30*time.Second, cfg.ReconnectMax)

		// absent or empty fields keep defaults
		assert.Equal(t, ":9090", cfg.MetricsAddr)
		assert.Equal(t, time.Second, cfg.ReconnectBase)
		assert.Equal(t, "us-east-1", cfg.S3Region)
	})

	t.Run("no flag is a no-op", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg
		require.NoError(t, parseJson(cfg, []string{"-d", "x"}))
		assert.Equal(t, want, *cfg)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		assert.Error(t, parseJson(&Config{}, []string{"-config", bad}))
	})

	t.Run("invalid duration", func(t *testing.T) {
		bad := writeTempJSON(t, "", "", map[string]any{"reconnect_base": "soon"})
		assert.Error(t, parseJson(&Config{}, []string{"-config", bad}))
	})
}
