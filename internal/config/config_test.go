package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndValidate(t *testing.T) {
	t.Setenv("SETLIST_FM_API_KEY", "")
	t.Setenv("SETORACLE_SETLISTFM_API_KEY", "")

	path := writeConfig(t, `
setlistfm:
  api_base_url: "https://api.setlist.fm/rest/1.0"
  api_key: "test-key"
  timeout: 10s
  max_retries: 4
  retry_delay_base: 250ms
  page_delay: 1s
  max_candidates: 5

model:
  length: 12
  seed: 42

storage:
  db_path: "./data/test.db"
  csv_path: "./data/test.csv"

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Setlistfm.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Setlistfm.Timeout)
	assert.Equal(t, 4, cfg.Setlistfm.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Setlistfm.RetryDelayBase)
	assert.Equal(t, time.Second, cfg.Setlistfm.PageDelay)
	assert.Equal(t, 5, cfg.Setlistfm.MaxCandidates)
	assert.Equal(t, 12, cfg.Model.Length)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, "./data/test.csv", cfg.Storage.CSVPath)

	// Unset keys fall back to defaults
	assert.Equal(t, "en", cfg.Setlistfm.Language)
	assert.Equal(t, "sortName", cfg.Setlistfm.SearchSort)
	assert.Equal(t, 2.0, cfg.Setlistfm.RequestsPerSecond)

	require.NoError(t, cfg.Validate())

	cc := cfg.ClientConfig()
	assert.Equal(t, "test-key", cc.APIKey)
	assert.Equal(t, 4, cc.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cc.RetryDelayBase)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SETLIST_FM_API_KEY", "")
	t.Setenv("SETORACLE_SETLISTFM_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://api.setlist.fm/rest/1.0", cfg.Setlistfm.APIBaseURL)
	assert.Equal(t, 5, cfg.Setlistfm.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Setlistfm.RetryDelayBase)
	assert.Equal(t, 500*time.Millisecond, cfg.Setlistfm.PageDelay)
	assert.Equal(t, 10, cfg.Setlistfm.MaxCandidates)
	assert.Equal(t, 10, cfg.Model.Length)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("SETORACLE_SETLISTFM_API_KEY", "")
	t.Setenv("SETLIST_FM_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Setlistfm.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Setlistfm: SetlistfmConfig{
			APIBaseURL:     "https://example.com",
			APIKey:         "key",
			Timeout:        30 * time.Second,
			MaxRetries:     5,
			RetryDelayBase: 500 * time.Millisecond,
			PageDelay:      500 * time.Millisecond,
			MaxCandidates:  10,
		},
		Model:   ModelConfig{Length: 10},
		Storage: StorageConfig{DBPath: "./data/test.db"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing api key", func(c *Config) { c.Setlistfm.APIKey = "" }},
		{"missing base url", func(c *Config) { c.Setlistfm.APIBaseURL = "" }},
		{"zero timeout", func(c *Config) { c.Setlistfm.Timeout = 0 }},
		{"zero retry budget", func(c *Config) { c.Setlistfm.MaxRetries = 0 }},
		{"negative retry delay", func(c *Config) { c.Setlistfm.RetryDelayBase = -time.Second }},
		{"negative page delay", func(c *Config) { c.Setlistfm.PageDelay = -time.Second }},
		{"negative request rate", func(c *Config) { c.Setlistfm.RequestsPerSecond = -1 }},
		{"zero max candidates", func(c *Config) { c.Setlistfm.MaxCandidates = 0 }},
		{"zero length", func(c *Config) { c.Model.Length = 0 }},
		{"missing db path", func(c *Config) { c.Storage.DBPath = "" }},
		{"telegram without token", func(c *Config) { c.Telegram = TelegramConfig{Enabled: true, ChatID: "1"} }},
		{"telegram without chat", func(c *Config) { c.Telegram = TelegramConfig{Enabled: true, BotToken: "t"} }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	require.NoError(t, validConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration), "expected ErrConfiguration, got %v", err)
		})
	}
}
