package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the crawler
type Config struct {
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`
	Query     QueryConfig     `yaml:"query" json:"query"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Resume    ResumeConfig    `yaml:"resume" json:"resume"`
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Crawl     CrawlConfig     `yaml:"crawl" json:"crawl"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// InstagramConfig holds endpoint and client identity settings
type InstagramConfig struct {
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
	Scheme          string        `yaml:"scheme" json:"scheme"`
	Host            string        `yaml:"host" json:"host"`
	IPhoneHost      string        `yaml:"iphone_host" json:"iphone_host"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
	SignatureSecret string        `yaml:"signature_secret" json:"signature_secret"`
}

// QueryConfig holds request retry and pagination settings
type QueryConfig struct {
	Sleep                 bool          `yaml:"sleep" json:"sleep"`
	MaxConnectionAttempts int           `yaml:"max_connection_attempts" json:"max_connection_attempts"`
	PageLength            int           `yaml:"page_length" json:"page_length"`
	MinPageLength         int           `yaml:"min_page_length" json:"min_page_length"`
	ShelfLife             time.Duration `yaml:"shelf_life" json:"shelf_life"`
}

// RateLimitConfig holds the sliding window settings of the rate controller
type RateLimitConfig struct {
	Window             time.Duration `yaml:"window" json:"window"`
	QueriesPerWindow   int           `yaml:"queries_per_window" json:"queries_per_window"`
	Margin             time.Duration `yaml:"margin" json:"margin"`
	UnthrottledQueries []string      `yaml:"unthrottled_queries" json:"unthrottled_queries"`
	SharedWindow       bool          `yaml:"shared_window" json:"shared_window"`
}

// ResumeConfig holds settings for iterator snapshots
type ResumeConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	Directory       string `yaml:"directory" json:"directory"`
	CheckBestBefore bool   `yaml:"check_bbd" json:"check_bbd"`
	Compress        bool   `yaml:"compress" json:"compress"`
	Backend         string `yaml:"backend" json:"backend"`
}

// RedisConfig holds connection settings for the redis snapshot backend
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	CreateUserFolders bool   `yaml:"create_user_folders" json:"create_user_folders"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts"`
	RequestsPerSecond   float64       `yaml:"requests_per_second" json:"requests_per_second"`
	SkipVideos          bool          `yaml:"skip_videos" json:"skip_videos"`
	SaveMetadata        bool          `yaml:"save_metadata" json:"save_metadata"`
}

// CrawlConfig holds batch run behaviour
type CrawlConfig struct {
	Parallel         int    `yaml:"parallel" json:"parallel"`
	RaiseAllErrors   bool   `yaml:"raise_all_errors" json:"raise_all_errors"`
	PostFilter       string `yaml:"post_filter" json:"post_filter"`
	FastUpdate       bool   `yaml:"fast_update" json:"fast_update"`
	LatestStampsFile string `yaml:"latest_stamps_file" json:"latest_stamps_file"`
}

// MetricsConfig holds prometheus exporter settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	Quiet bool   `yaml:"quiet" json:"quiet"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Scheme:         "https",
			Host:           "www.instagram.com",
			IPhoneHost:     "i.instagram.com",
			RequestTimeout: 300 * time.Second,
		},
		Query: QueryConfig{
			Sleep:                 true,
			MaxConnectionAttempts: 3,
			PageLength:            50,
			MinPageLength:         12,
			ShelfLife:             29 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Window:           660 * time.Second,
			QueriesPerWindow: 20,
			Margin:           6 * time.Second,
		},
		Resume: ResumeConfig{
			Enabled:         true,
			Prefix:          "iterator",
			CheckBestBefore: true,
			Compress:        true,
			Backend:         "file",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "igcrawler:resume",
			TTL:    29 * 24 * time.Hour,
		},
		Output: OutputConfig{
			BaseDirectory:     "./downloads",
			CreateUserFolders: true,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
			RetryAttempts:       3,
			RequestsPerSecond:   2,
		},
		Crawl: CrawlConfig{
			Parallel: 1,
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("IGCRAWLER_USER_AGENT"); v != "" {
		c.Instagram.UserAgent = v
	}
	if v := os.Getenv("IGCRAWLER_SIGNATURE_SECRET"); v != "" {
		c.Instagram.SignatureSecret = v
	}
	if v := os.Getenv("IGCRAWLER_MAX_CONNECTION_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGCRAWLER_MAX_CONNECTION_ATTEMPTS: %w", err))
		} else {
			c.Query.MaxConnectionAttempts = n
		}
	}
	if v := os.Getenv("IGCRAWLER_NO_SLEEP"); v != "" {
		c.Query.Sleep = !parseBool(v)
	}
	if v := os.Getenv("IGCRAWLER_QUERIES_PER_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGCRAWLER_QUERIES_PER_WINDOW: %w", err))
		} else {
			c.RateLimit.QueriesPerWindow = n
		}
	}
	if v := os.Getenv("IGCRAWLER_RESUME_PREFIX"); v != "" {
		c.Resume.Prefix = v
	}
	if v := os.Getenv("IGCRAWLER_RESUME_BACKEND"); v != "" {
		c.Resume.Backend = v
	}
	if v := os.Getenv("IGCRAWLER_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("IGCRAWLER_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("IGCRAWLER_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("IGCRAWLER_CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGCRAWLER_CONCURRENT_DOWNLOADS: %w", err))
		} else if n > 0 {
			c.Download.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv("IGCRAWLER_SAVE_METADATA"); v != "" {
		c.Download.SaveMetadata = parseBool(v)
	}
	if v := os.Getenv("IGCRAWLER_POST_FILTER"); v != "" {
		c.Crawl.PostFilter = v
	}
	if v := os.Getenv("IGCRAWLER_METRICS_ADDR"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}
	if v := os.Getenv("IGCRAWLER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errs...)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".igcrawler.yaml",
		".igcrawler.yml",
		filepath.Join(home, ".config", "igcrawler", "config.yaml"),
		filepath.Join(home, ".config", "igcrawler", "config.yml"),
		filepath.Join(home, ".igcrawler.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Instagram.Host == "" {
		errs = append(errs, errors.New("instagram host is required"))
	}
	if c.Instagram.Scheme != "http" && c.Instagram.Scheme != "https" {
		errs = append(errs, fmt.Errorf("unsupported scheme %q", c.Instagram.Scheme))
	}
	if c.Query.MaxConnectionAttempts < 0 {
		errs = append(errs, errors.New("max connection attempts cannot be negative"))
	}
	if c.Query.MinPageLength <= 0 || c.Query.PageLength < c.Query.MinPageLength {
		errs = append(errs, errors.New("page length must be at least the minimum page length"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.QueriesPerWindow <= 0 {
		errs = append(errs, errors.New("queries per window must be positive"))
	}
	switch c.Resume.Backend {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown resume backend %q", c.Resume.Backend))
	}
	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Crawl.Parallel <= 0 {
		errs = append(errs, errors.New("parallel targets must be positive"))
	}
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags explicitly set by the user should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["max-connection-attempts"].(int); ok && v >= 0 {
		c.Query.MaxConnectionAttempts = v
	}
	if v, ok := flags["no-sleep"].(bool); ok && v {
		c.Query.Sleep = false
	}
	if v, ok := flags["resume-prefix"].(string); ok && v != "" {
		c.Resume.Prefix = v
	}
	if v, ok := flags["no-resume"].(bool); ok && v {
		c.Resume.Enabled = false
	}
	if v, ok := flags["resume-backend"].(string); ok && v != "" {
		c.Resume.Backend = v
	}
	if v, ok := flags["post-filter"].(string); ok && v != "" {
		c.Crawl.PostFilter = v
	}
	if v, ok := flags["parallel"].(int); ok && v > 0 {
		c.Crawl.Parallel = v
	}
	if v, ok := flags["raise-all-errors"].(bool); ok && v {
		c.Crawl.RaiseAllErrors = true
	}
	if v, ok := flags["fast-update"].(bool); ok && v {
		c.Crawl.FastUpdate = true
	}
	if v, ok := flags["latest-stamps"].(string); ok && v != "" {
		c.Crawl.LatestStampsFile = v
	}
	if v, ok := flags["skip-videos"].(bool); ok && v {
		c.Download.SkipVideos = true
	}
	if v, ok := flags["save-metadata"].(bool); ok && v {
		c.Download.SaveMetadata = true
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["quiet"].(bool); ok && v {
		c.Logging.Quiet = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igcrawler.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
