// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Upload      UploadConfig      `yaml:"upload"`
	Paths       PathsConfig       `yaml:"paths"`
	Collections CollectionsConfig `yaml:"collections"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Server      ServerConfig      `yaml:"server"`
}

// APIConfig configures the platform quota and request rate limits.
type APIConfig struct {
	DailyQuota           int `yaml:"daily_quota"`
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
}

// UploadConfig configures the chunked transfer engine.
type UploadConfig struct {
	ChunkSizeMB    int           `yaml:"chunk_size_mb"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	Verify         bool          `yaml:"verify"` // check processing status after each upload
}

// PathsConfig locates the files and directories the uploader works with.
type PathsConfig struct {
	VideosDir       string `yaml:"videos_dir"`
	MetadataFile    string `yaml:"metadata_file"`
	LedgerFile      string `yaml:"ledger_file"`
	HistoryDB       string `yaml:"history_db"`
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
}

// CollectionsConfig configures collection (playlist) handling.
type CollectionsConfig struct {
	Create  bool   `yaml:"create"`  // create missing collections
	Privacy string `yaml:"privacy"` // privacy for created collections
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// ServerConfig configures the status HTTP server used by watch mode.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ChunkSize returns the configured chunk size in bytes.
func (u UploadConfig) ChunkSize() int64 {
	return int64(u.ChunkSizeMB) << 20
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment
// variables, for containerized runs where no config file is mounted.
//
// Environment variables:
//
//	TUBEGATE_VIDEOS_DIR        - Directory scanned for video files (required)
//	TUBEGATE_DAILY_QUOTA       - Daily quota units (default: 10000)
//	TUBEGATE_MAX_RPM           - Max requests per minute (default: 60)
//	TUBEGATE_CHUNK_SIZE_MB     - Upload chunk size in MiB (default: 10)
//	TUBEGATE_MAX_RETRIES       - Max transient retries per upload (default: 5)
//	TUBEGATE_RETRY_BASE_DELAY  - Base retry delay (default: 1s)
//	TUBEGATE_UPLOAD_VERIFY     - Check processing status after uploads (default: false)
//	TUBEGATE_LEDGER_FILE       - Quota ledger path (default: quota_usage.json)
//	TUBEGATE_HISTORY_DB        - Upload history database (default: tubegate.db)
//	TUBEGATE_CREDENTIALS_FILE  - OAuth client secrets path
//	TUBEGATE_TOKEN_FILE        - OAuth token cache path
//	TUBEGATE_LOG_LEVEL         - Log level (default: info)
//	TUBEGATE_LOG_FORMAT        - Log format: json or console (default: json)
//	TUBEGATE_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falling back to environment
// variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if os.Getenv("TUBEGATE_VIDEOS_DIR") != "" {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set TUBEGATE_VIDEOS_DIR")
}

// applyEnvOverrides applies TUBEGATE_* environment variables to the
// config. Environment variables always override file-based values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TUBEGATE_DAILY_QUOTA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.DailyQuota = n
		}
	}
	if v := os.Getenv("TUBEGATE_MAX_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.MaxRequestsPerMinute = n
		}
	}

	if v := os.Getenv("TUBEGATE_CHUNK_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.ChunkSizeMB = n
		}
	}
	if v := os.Getenv("TUBEGATE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.MaxRetries = n
		}
	}
	if v := os.Getenv("TUBEGATE_RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upload.RetryBaseDelay = d
		}
	}
	if v := os.Getenv("TUBEGATE_UPLOAD_VERIFY"); v != "" {
		cfg.Upload.Verify = parseBool(v)
	}

	if v := os.Getenv("TUBEGATE_VIDEOS_DIR"); v != "" {
		cfg.Paths.VideosDir = v
	}
	if v := os.Getenv("TUBEGATE_METADATA_FILE"); v != "" {
		cfg.Paths.MetadataFile = v
	}
	if v := os.Getenv("TUBEGATE_LEDGER_FILE"); v != "" {
		cfg.Paths.LedgerFile = v
	}
	if v := os.Getenv("TUBEGATE_HISTORY_DB"); v != "" {
		cfg.Paths.HistoryDB = v
	}
	if v := os.Getenv("TUBEGATE_CREDENTIALS_FILE"); v != "" {
		cfg.Paths.CredentialsFile = v
	}
	if v := os.Getenv("TUBEGATE_TOKEN_FILE"); v != "" {
		cfg.Paths.TokenFile = v
	}

	if v := os.Getenv("TUBEGATE_COLLECTIONS_CREATE"); v != "" {
		cfg.Collections.Create = parseBool(v)
	}
	if v := os.Getenv("TUBEGATE_COLLECTIONS_PRIVACY"); v != "" {
		cfg.Collections.Privacy = v
	}

	if v := os.Getenv("TUBEGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TUBEGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("TUBEGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("TUBEGATE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	if v := os.Getenv("TUBEGATE_SERVER_ENABLED"); v != "" {
		cfg.Server.Enabled = parseBool(v)
	}
	if v := os.Getenv("TUBEGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TUBEGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.API.DailyQuota == 0 {
		cfg.API.DailyQuota = 10000
	}
	if cfg.API.MaxRequestsPerMinute == 0 {
		cfg.API.MaxRequestsPerMinute = 60
	}

	if cfg.Upload.ChunkSizeMB == 0 {
		cfg.Upload.ChunkSizeMB = 10
	}
	if cfg.Upload.MaxRetries == 0 {
		cfg.Upload.MaxRetries = 5
	}
	if cfg.Upload.RetryBaseDelay == 0 {
		cfg.Upload.RetryBaseDelay = time.Second
	}

	if cfg.Paths.MetadataFile == "" {
		cfg.Paths.MetadataFile = "metadata.yaml"
	}
	if cfg.Paths.LedgerFile == "" {
		cfg.Paths.LedgerFile = "quota_usage.json"
	}
	if cfg.Paths.HistoryDB == "" {
		cfg.Paths.HistoryDB = "tubegate.db"
	}
	if cfg.Paths.CredentialsFile == "" {
		cfg.Paths.CredentialsFile = "client_secrets.json"
	}
	if cfg.Paths.TokenFile == "" {
		cfg.Paths.TokenFile = "token.json"
	}

	if cfg.Collections.Privacy == "" {
		cfg.Collections.Privacy = "private"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Paths.VideosDir == "" {
		return fmt.Errorf("paths.videos_dir is required")
	}

	if cfg.API.DailyQuota < 0 {
		return fmt.Errorf("api.daily_quota must not be negative")
	}
	if cfg.API.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("api.max_requests_per_minute must be positive")
	}

	if cfg.Upload.ChunkSizeMB < 0 {
		return fmt.Errorf("upload.chunk_size_mb must not be negative")
	}
	if cfg.Upload.MaxRetries < 0 {
		return fmt.Errorf("upload.max_retries must not be negative")
	}
	if cfg.Upload.RetryBaseDelay < 0 {
		return fmt.Errorf("upload.retry_base_delay must not be negative")
	}

	validPrivacy := map[string]bool{"public": true, "private": true, "unlisted": true}
	if !validPrivacy[cfg.Collections.Privacy] {
		return fmt.Errorf("collections.privacy must be public, private, or unlisted, got %q", cfg.Collections.Privacy)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be json or console, got %q", cfg.Logging.Format)
	}

	return nil
}
