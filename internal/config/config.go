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
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Session  SessionConfig  `mapstructure:"session"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Cache    CacheConfig    `mapstructure:"cache"`
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

// UpstreamConfig identifies the search API and the request shape it expects.
type UpstreamConfig struct {
	Endpoint          string `mapstructure:"endpoint"`
	BootstrapURL      string `mapstructure:"bootstrap_url"`
	Origin            string `mapstructure:"origin"`
	IndexName         string `mapstructure:"index_name"`
	UserAgent         string `mapstructure:"user_agent"`
	HitsPerPage       int    `mapstructure:"hits_per_page"`
	MaxValuesPerFacet int    `mapstructure:"max_values_per_facet"`
}

// SessionConfig governs session lifetime and HTTP client retry behavior.
type SessionConfig struct {
	MaxAgeMinutes    int `mapstructure:"max_age_minutes"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
}

// HarvestConfig bounds the page loop.
type HarvestConfig struct {
	MaxRecords  int `mapstructure:"max_records"`
	PageDelayMs int `mapstructure:"page_delay_ms"`
}

// CacheConfig controls result memoization. A zero TTL disables the cache.
type CacheConfig struct {
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LVMH")
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
	v.SetDefault("upstream.endpoint", "https://www.lvmh.com/api/search")
	v.SetDefault("upstream.bootstrap_url", "https://www.lvmh.com/en/join-us/our-job-offers")
	v.SetDefault("upstream.origin", "https://www.lvmh.com")
	v.SetDefault("upstream.index_name", "PRD-en-us-timestamp-desc")
	v.SetDefault("upstream.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36")
	v.SetDefault("upstream.hits_per_page", 50)
	v.SetDefault("upstream.max_values_per_facet", 100)
	v.SetDefault("session.max_age_minutes", 30)
	v.SetDefault("session.max_retries", 5)
	v.SetDefault("session.backoff_initial_ms", 1000)
	v.SetDefault("session.backoff_max_ms", 30000)
	v.SetDefault("session.timeout_seconds", 30)
	v.SetDefault("harvest.max_records", 5000)
	v.SetDefault("harvest.page_delay_ms", 500)
	v.SetDefault("cache.ttl_minutes", 15)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Upstream.Endpoint == "" {
		return fmt.Errorf("upstream.endpoint must be set")
	}
	if c.Upstream.BootstrapURL == "" {
		return fmt.Errorf("upstream.bootstrap_url must be set")
	}
	if c.Upstream.HitsPerPage <= 0 {
		return fmt.Errorf("upstream.hits_per_page must be > 0")
	}
	if c.Session.MaxRetries <= 0 {
		return fmt.Errorf("session.max_retries must be > 0")
	}
	if c.Session.TimeoutSeconds <= 0 {
		return fmt.Errorf("session.timeout_seconds must be > 0")
	}
	if c.Harvest.MaxRecords <= 0 {
		return fmt.Errorf("harvest.max_records must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// SessionMaxAge converts the configured session lifetime into a duration.
func (c Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Session.MaxAgeMinutes) * time.Minute
}

// RequestTimeout converts the configured HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the configured retry backoff base into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.Session.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the configured retry backoff cap into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.Session.BackoffMaxMs) * time.Millisecond
}

// PageDelay converts the configured courtesy delay into a duration.
func (c Config) PageDelay() time.Duration {
	return time.Duration(c.Harvest.PageDelayMs) * time.Millisecond
}

// CacheTTL converts the configured cache lifetime into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}
