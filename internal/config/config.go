// Package config loads the feed service configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Sternrassler/recruit-client/pkg/logging"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "RECRUIT__"

// Config is the top-level service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	API     APIConfig     `koanf:"api"`
	Redis   RedisConfig   `koanf:"redis"`
	Feeds   FeedsConfig   `koanf:"feeds"`
	Session SessionConfig `koanf:"session"`
	Log     LogConfig     `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// APIConfig holds the recruiting API client settings.
type APIConfig struct {
	BaseURL        string        `koanf:"base_url"`
	UserAgent      string        `koanf:"user_agent"`
	SessionID      string        `koanf:"session_id"`
	Timeout        time.Duration `koanf:"timeout"`
	RateLimit      float64       `koanf:"rate_limit"`
	Burst          int           `koanf:"burst"`
	MaxRetries     int           `koanf:"max_retries"`
	InitialBackoff time.Duration `koanf:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`
	CacheRetention time.Duration `koanf:"cache_retention"`
}

// RedisConfig holds the optional Redis connection. Without it the service
// keeps caches and back-off state in memory and skips the response cache.
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// FeedsConfig tunes the list controllers.
type FeedsConfig struct {
	PageSize     int           `koanf:"page_size"`
	CountLimit   int           `koanf:"count_limit"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// SessionConfig holds the persistent session store settings.
type SessionConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// Default returns the configuration used for every key that is not set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		API: APIConfig{
			UserAgent:      "recruit-feed/1.0",
			Timeout:        30 * time.Second,
			RateLimit:      10,
			Burst:          5,
			MaxRetries:     2,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			CacheRetention: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Feeds: FeedsConfig{
			PageSize:     12,
			CountLimit:   1000,
			FetchTimeout: 15 * time.Second,
		},
		Session: SessionConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file and overlays environment
// variables. Variables from a .env file in the working directory are loaded
// first without overriding the real environment. An empty configPath skips
// the file.
//
// Environment variables use the prefix "RECRUIT__" and double-underscore as
// the hierarchy separator. Single underscores are preserved as part of the key
// name: RECRUIT__API__BASE_URL overrides api.base_url.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, EnvPrefix)
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "__", ".")
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values and normalizes them.
func (c *Config) Validate() error {
	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid server.shutdown_timeout %v: must be greater than 0", c.Server.ShutdownTimeout)
	}

	baseURL := strings.TrimSpace(c.API.BaseURL)
	if baseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid api.base_url %q: %w", c.API.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q: must be an absolute http or https URL", c.API.BaseURL)
	}
	c.API.BaseURL = baseURL

	c.API.UserAgent = strings.TrimSpace(c.API.UserAgent)
	if c.API.UserAgent == "" {
		return fmt.Errorf("api.user_agent is required")
	}
	c.API.SessionID = strings.TrimSpace(c.API.SessionID)

	if c.API.Timeout <= 0 {
		return fmt.Errorf("invalid api.timeout %v: must be greater than 0", c.API.Timeout)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("invalid api.rate_limit %v: must not be negative", c.API.RateLimit)
	}
	if c.API.RateLimit > 0 && c.API.Burst <= 0 {
		return fmt.Errorf("invalid api.burst %d: must be positive when rate limiting is enabled", c.API.Burst)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("invalid api.max_retries %d: must not be negative", c.API.MaxRetries)
	}
	if c.API.InitialBackoff <= 0 || c.API.MaxBackoff < c.API.InitialBackoff {
		return fmt.Errorf("invalid api backoff %v..%v: initial must be positive and not exceed max", c.API.InitialBackoff, c.API.MaxBackoff)
	}
	if c.API.CacheRetention <= 0 {
		return fmt.Errorf("invalid api.cache_retention %v: must be greater than 0", c.API.CacheRetention)
	}

	if c.Redis.Enabled {
		addr := strings.TrimSpace(c.Redis.Addr)
		if addr == "" {
			return fmt.Errorf("redis.addr is required when redis is enabled")
		}
		c.Redis.Addr = addr
		if c.Redis.DB < 0 {
			return fmt.Errorf("invalid redis.db %d: must not be negative", c.Redis.DB)
		}
	}

	if c.Feeds.PageSize <= 0 {
		return fmt.Errorf("invalid feeds.page_size %d: must be positive", c.Feeds.PageSize)
	}
	if c.Feeds.CountLimit < c.Feeds.PageSize {
		return fmt.Errorf("invalid feeds.count_limit %d: must be at least feeds.page_size", c.Feeds.CountLimit)
	}
	if c.Feeds.FetchTimeout < 0 {
		return fmt.Errorf("invalid feeds.fetch_timeout %v: must not be negative", c.Feeds.FetchTimeout)
	}

	if c.Session.TTL < 0 {
		return fmt.Errorf("invalid session.ttl %v: must not be negative", c.Session.TTL)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if !logging.ValidLevel(logging.LogLevel(level)) {
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q, %q", c.Log.Level, "debug", "info", "warn", "error", "disabled")
	}
	c.Log.Level = level

	return nil
}
