package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Query.MaxConnectionAttempts)
	assert.Equal(t, 50, cfg.Query.PageLength)
	assert.Equal(t, 12, cfg.Query.MinPageLength)
	assert.Equal(t, 660*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 20, cfg.RateLimit.QueriesPerWindow)
	assert.Equal(t, 6*time.Second, cfg.RateLimit.Margin)
	assert.True(t, cfg.Resume.Enabled)
	assert.True(t, cfg.Resume.CheckBestBefore)
	assert.Equal(t, "file", cfg.Resume.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGCRAWLER_MAX_CONNECTION_ATTEMPTS", "0")
	t.Setenv("IGCRAWLER_NO_SLEEP", "true")
	t.Setenv("IGCRAWLER_RESUME_PREFIX", "posts")
	t.Setenv("IGCRAWLER_OUTPUT_DIR", "/tmp/test-downloads")
	t.Setenv("IGCRAWLER_LOG_LEVEL", "debug")
	t.Setenv("IGCRAWLER_METRICS_ADDR", ":9999")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 0, cfg.Query.MaxConnectionAttempts)
	assert.False(t, cfg.Query.Sleep)
	assert.Equal(t, "posts", cfg.Resume.Prefix)
	assert.Equal(t, "/tmp/test-downloads", cfg.Output.BaseDirectory)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	t.Setenv("IGCRAWLER_MAX_CONNECTION_ATTEMPTS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IGCRAWLER_MAX_CONNECTION_ATTEMPTS")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
query:
  max_connection_attempts: 5
  page_length: 24
rate_limit:
  queries_per_window: 200
  unthrottled_queries: ["iphone"]
resume:
  backend: redis
  prefix: feed
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 5, cfg.Query.MaxConnectionAttempts)
	assert.Equal(t, 24, cfg.Query.PageLength)
	assert.Equal(t, 200, cfg.RateLimit.QueriesPerWindow)
	assert.Equal(t, []string{"iphone"}, cfg.RateLimit.UnthrottledQueries)
	assert.Equal(t, "redis", cfg.Resume.Backend)
	assert.Equal(t, "feed", cfg.Resume.Prefix)
	// untouched keys keep their defaults
	assert.Equal(t, 12, cfg.Query.MinPageLength)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative attempts", func(c *Config) { c.Query.MaxConnectionAttempts = -1 }, "max connection attempts"},
		{"page below floor", func(c *Config) { c.Query.PageLength = 6 }, "page length"},
		{"zero quota", func(c *Config) { c.RateLimit.QueriesPerWindow = 0 }, "queries per window"},
		{"bad backend", func(c *Config) { c.Resume.Backend = "s3" }, "resume backend"},
		{"bad scheme", func(c *Config) { c.Instagram.Scheme = "ftp" }, "scheme"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"max-connection-attempts": 7,
		"no-sleep":                true,
		"no-resume":               true,
		"post-filter":             "likes > 100",
		"parallel":                4,
		"metrics-addr":            ":2112",
	})

	assert.Equal(t, 7, cfg.Query.MaxConnectionAttempts)
	assert.False(t, cfg.Query.Sleep)
	assert.False(t, cfg.Resume.Enabled)
	assert.Equal(t, "likes > 100", cfg.Crawl.PostFilter)
	assert.Equal(t, 4, cfg.Crawl.Parallel)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Crawl.PostFilter = "is_video == false"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "is_video == false", loaded.Crawl.PostFilter)
	assert.Equal(t, cfg.RateLimit.Window, loaded.RateLimit.Window)
}
