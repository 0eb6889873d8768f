package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/rewired-gh/setoracle/internal/setlistfm"
)

// ErrConfiguration marks an invalid or incomplete configuration. It is fatal and
// raised before any pipeline stage runs.
var ErrConfiguration = eris.New("configuration error")

// Config represents the complete application configuration
type Config struct {
	Setlistfm SetlistfmConfig `mapstructure:"setlistfm"`
	Model     ModelConfig     `mapstructure:"model"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SetlistfmConfig holds catalog API configuration
type SetlistfmConfig struct {
	APIBaseURL        string        `mapstructure:"api_base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Language          string        `mapstructure:"language"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	PageDelay         time.Duration `mapstructure:"page_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	SearchSort        string        `mapstructure:"search_sort"`
	MaxCandidates     int           `mapstructure:"max_candidates"`
}

// ModelConfig holds sequence generation configuration
type ModelConfig struct {
	Length int   `mapstructure:"length"`
	Seed   int64 `mapstructure:"seed"` // 0 seeds from system entropy
}

// StorageConfig holds row sink configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	CSVPath string `mapstructure:"csv_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and environment variables.
// An empty path skips the file and relies on defaults and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// SETORACLE_SETLISTFM_API_KEY overrides setlistfm.api_key, etc.
	v.SetEnvPrefix("SETORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("setlistfm.api_key", "SETORACLE_SETLISTFM_API_KEY", "SETLIST_FM_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "failed to bind api key env")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Catalog defaults
	v.SetDefault("setlistfm.api_base_url", setlistfm.DefaultBaseURL)
	v.SetDefault("setlistfm.api_key", "")
	v.SetDefault("setlistfm.language", "en")
	v.SetDefault("setlistfm.timeout", "30s")
	v.SetDefault("setlistfm.max_retries", setlistfm.DefaultMaxAttempts)
	v.SetDefault("setlistfm.retry_delay_base", setlistfm.DefaultRetryDelayBase)
	v.SetDefault("setlistfm.page_delay", setlistfm.DefaultPageDelay)
	v.SetDefault("setlistfm.requests_per_second", 2.0)
	v.SetDefault("setlistfm.search_sort", "sortName")
	v.SetDefault("setlistfm.max_candidates", 10)

	// Model defaults
	v.SetDefault("model.length", 10)
	v.SetDefault("model.seed", 0)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/setoracle.db")
	v.SetDefault("storage.csv_path", "")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate catalog config
	if c.Setlistfm.APIKey == "" {
		return eris.Wrap(ErrConfiguration, "setlistfm.api_key is required (set SETLIST_FM_API_KEY)")
	}
	if c.Setlistfm.APIBaseURL == "" {
		return eris.Wrap(ErrConfiguration, "setlistfm.api_base_url is required")
	}
	if c.Setlistfm.Timeout <= 0 {
		return eris.Wrap(ErrConfiguration, "setlistfm.timeout must be positive")
	}
	if c.Setlistfm.MaxRetries < 1 {
		return eris.Wrap(ErrConfiguration, "setlistfm.max_retries must be at least 1")
	}
	if c.Setlistfm.RetryDelayBase < 0 {
		return eris.Wrap(ErrConfiguration, "setlistfm.retry_delay_base must not be negative")
	}
	if c.Setlistfm.PageDelay < 0 {
		return eris.Wrap(ErrConfiguration, "setlistfm.page_delay must not be negative")
	}
	if c.Setlistfm.RequestsPerSecond < 0 {
		return eris.Wrap(ErrConfiguration, "setlistfm.requests_per_second must not be negative")
	}
	if c.Setlistfm.MaxCandidates < 1 {
		return eris.Wrap(ErrConfiguration, "setlistfm.max_candidates must be at least 1")
	}

	// Validate model config
	if c.Model.Length < 1 {
		return eris.Wrap(ErrConfiguration, "model.length must be at least 1")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return eris.Wrap(ErrConfiguration, "storage.db_path is required")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return eris.Wrap(ErrConfiguration, "telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return eris.Wrap(ErrConfiguration, "telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return eris.Wrap(ErrConfiguration, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return eris.Wrap(ErrConfiguration, "logging.format must be one of: json, text")
	}

	return nil
}

// ClientConfig builds the immutable catalog client configuration shared by every request.
func (c *Config) ClientConfig() *setlistfm.ClientConfig {
	return &setlistfm.ClientConfig{
		BaseURL:           c.Setlistfm.APIBaseURL,
		APIKey:            c.Setlistfm.APIKey,
		Language:          c.Setlistfm.Language,
		Timeout:           c.Setlistfm.Timeout,
		MaxAttempts:       c.Setlistfm.MaxRetries,
		RetryDelayBase:    c.Setlistfm.RetryDelayBase,
		RequestsPerSecond: c.Setlistfm.RequestsPerSecond,
		SearchSort:        c.Setlistfm.SearchSort,
	}
}
