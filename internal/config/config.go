// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Reddit   RedditConfig   `mapstructure:"reddit"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// WorkerConfig governs the dispatch pipeline.
type WorkerConfig struct {
	Concurrency       int `mapstructure:"concurrency"`
	QueueDepth        int `mapstructure:"queue_depth"`
	MaxRetries        int `mapstructure:"max_retries"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`
}

// HTTPConfig configures the outbound fetch client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxAttempts    int `mapstructure:"max_attempts"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	WaitTimeoutSec int    `mapstructure:"wait_timeout_seconds"`
	ScreenshotDir  string `mapstructure:"screenshot_dir"`
}

// ScraperConfig holds extraction-wide settings.
type ScraperConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

// RedditConfig carries OAuth credentials for the Reddit API path. Leaving
// them empty degrades Reddit jobs to the basic HTML fallback.
type RedditConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	UserAgent    string `mapstructure:"user_agent"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig selects the Redis queue backend. An empty address selects the
// in-memory queue.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MLCOLLECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queue_depth", 64)
	v.SetDefault("worker.max_retries", 2)
	v.SetDefault("worker.retry_delay_seconds", 300)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("headless.nav_timeout_seconds", 60)
	v.SetDefault("headless.wait_timeout_seconds", 20)
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("reddit.user_agent", "ml-data-collector/1.0")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryDelay converts the worker retry delay into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Worker.RetryDelaySeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// WaitTimeout converts the headless element-wait timeout into a duration.
func (c Config) WaitTimeout() time.Duration {
	return time.Duration(c.Headless.WaitTimeoutSec) * time.Second
}
