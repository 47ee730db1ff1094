package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tubegate/tubegate/config"
)

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tubegate.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
paths:
  videos_dir: /videos
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.DailyQuota != 10000 {
		t.Errorf("daily quota = %d, want 10000", cfg.API.DailyQuota)
	}
	if cfg.API.MaxRequestsPerMinute != 60 {
		t.Errorf("rpm = %d, want 60", cfg.API.MaxRequestsPerMinute)
	}
	if cfg.Upload.ChunkSizeMB != 10 {
		t.Errorf("chunk size = %d, want 10", cfg.Upload.ChunkSizeMB)
	}
	if cfg.Upload.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.Upload.MaxRetries)
	}
	if cfg.Upload.RetryBaseDelay != time.Second {
		t.Errorf("base delay = %v, want 1s", cfg.Upload.RetryBaseDelay)
	}
	if cfg.Collections.Privacy != "private" {
		t.Errorf("privacy = %q, want private", cfg.Collections.Privacy)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
api:
  daily_quota: 20000
  max_requests_per_minute: 30
upload:
  chunk_size_mb: 32
  max_retries: 3
  retry_base_delay: 2s
paths:
  videos_dir: /videos
  ledger_file: /var/lib/tubegate/quota.json
collections:
  create: true
  privacy: unlisted
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.DailyQuota != 20000 || cfg.API.MaxRequestsPerMinute != 30 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Upload.ChunkSize() != 32<<20 {
		t.Errorf("chunk bytes = %d, want %d", cfg.Upload.ChunkSize(), 32<<20)
	}
	if cfg.Upload.RetryBaseDelay != 2*time.Second {
		t.Errorf("base delay = %v", cfg.Upload.RetryBaseDelay)
	}
	if !cfg.Collections.Create || cfg.Collections.Privacy != "unlisted" {
		t.Errorf("collections = %+v", cfg.Collections)
	}
}

func TestLoad_MissingVideosDirFails(t *testing.T) {
	path := writeConfig(t, `
api:
  daily_quota: 10000
`)
	if _, err := config.Load(path); err == nil {
		t.Error("expected validation error without videos_dir")
	}
}

func TestLoad_InvalidPrivacyFails(t *testing.T) {
	path := writeConfig(t, `
paths:
  videos_dir: /videos
collections:
  privacy: secret
`)
	if _, err := config.Load(path); err == nil {
		t.Error("expected validation error for bad privacy")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  daily_quota: 10000
paths:
  videos_dir: /videos
`)
	t.Setenv("TUBEGATE_DAILY_QUOTA", "5000")
	t.Setenv("TUBEGATE_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.DailyQuota != 5000 {
		t.Errorf("daily quota = %d, want env override 5000", cfg.API.DailyQuota)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TUBEGATE_VIDEOS_DIR", "/videos")
	t.Setenv("TUBEGATE_MAX_RPM", "120")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.VideosDir != "/videos" {
		t.Errorf("videos dir = %q", cfg.Paths.VideosDir)
	}
	if cfg.API.MaxRequestsPerMinute != 120 {
		t.Errorf("rpm = %d, want 120", cfg.API.MaxRequestsPerMinute)
	}
}

func TestLoadWithFallback_NoConfigFails(t *testing.T) {
	os.Unsetenv("TUBEGATE_VIDEOS_DIR")
	if _, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error with no config source")
	}
}
