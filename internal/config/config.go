// Package config loads holocron settings. Values are layered: built-in
// defaults, then an optional YAML file, then a .env file, then HOLOCRON_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "HOLOCRON_"

type Config struct {
	API        APIConfig        `yaml:"api"`
	Cache      CacheConfig      `yaml:"cache"`
	Search     SearchConfig     `yaml:"search"`
	Collection CollectionConfig `yaml:"collection"`
	Server     ServerConfig     `yaml:"server"`
}

// APIConfig configures the resource gateway.
type APIConfig struct {
	BaseURL            string        `yaml:"base_url"`             // default: https://swapi.dev/api
	Timeout            time.Duration `yaml:"timeout"`              // default: 30s
	RatePerSecond      float64       `yaml:"rate_per_second"`      // 0 disables limiting
	Burst              int           `yaml:"burst"`                // default: 1
	BreakerMaxFailures int           `yaml:"breaker_max_failures"` // default: 5
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`      // default: 30s
}

type CacheConfig struct {
	// MaxAge of fetched entries; 0 keeps them for the whole session.
	MaxAge time.Duration `yaml:"max_age"`
}

type SearchConfig struct {
	Debounce     time.Duration `yaml:"debounce"`      // default: 300ms
	MaxPages     int           `yaml:"max_pages"`     // default: 1
	PreviewLimit int           `yaml:"preview_limit"` // default: 3
}

type CollectionConfig struct {
	PageSize   int `yaml:"page_size"`   // default: 10
	PagerWidth int `yaml:"pager_width"` // default: 5
}

type ServerConfig struct {
	Host           string   `yaml:"host"` // default: 127.0.0.1
	Port           int      `yaml:"port"` // default: 8990
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:            "https://swapi.dev/api",
			Timeout:            30 * time.Second,
			Burst:              1,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Search: SearchConfig{
			Debounce:     300 * time.Millisecond,
			MaxPages:     1,
			PreviewLimit: 3,
		},
		Collection: CollectionConfig{
			PageSize:   10,
			PagerWidth: 5,
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8990,
			AllowedOrigins: []string{"localhost:*", "127.0.0.1:*"},
		},
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.API.BaseURL = envOrDefault("BASE_URL", c.API.BaseURL)
	c.API.Timeout = envDuration("TIMEOUT", c.API.Timeout)
	c.API.RatePerSecond = envFloat("RATE_PER_SECOND", c.API.RatePerSecond)
	c.API.Burst = envInt("BURST", c.API.Burst)
	c.API.BreakerMaxFailures = envInt("BREAKER_MAX_FAILURES", c.API.BreakerMaxFailures)
	c.API.BreakerTimeout = envDuration("BREAKER_TIMEOUT", c.API.BreakerTimeout)

	c.Cache.MaxAge = envDuration("CACHE_MAX_AGE", c.Cache.MaxAge)

	c.Search.Debounce = envDuration("DEBOUNCE", c.Search.Debounce)
	c.Search.MaxPages = envInt("SEARCH_MAX_PAGES", c.Search.MaxPages)
	c.Search.PreviewLimit = envInt("PREVIEW_LIMIT", c.Search.PreviewLimit)

	c.Collection.PageSize = envInt("PAGE_SIZE", c.Collection.PageSize)
	c.Collection.PagerWidth = envInt("PAGER_WIDTH", c.Collection.PagerWidth)

	c.Server.Host = envOrDefault("HOST", c.Server.Host)
	c.Server.Port = envInt("PORT", c.Server.Port)
	if v := os.Getenv(envPrefix + "ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.AllowedOrigins = origins
	}
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.RatePerSecond < 0 {
		errs = append(errs, errors.New("api.rate_per_second must not be negative"))
	}
	if c.API.Burst < 0 {
		errs = append(errs, errors.New("api.burst must not be negative"))
	}
	if c.API.BreakerMaxFailures < 0 {
		errs = append(errs, errors.New("api.breaker_max_failures must not be negative"))
	}
	if c.Search.Debounce <= 0 {
		errs = append(errs, errors.New("search.debounce must be positive"))
	}
	if c.Search.MaxPages < 1 {
		errs = append(errs, errors.New("search.max_pages must be at least 1"))
	}
	if c.Collection.PageSize < 1 {
		errs = append(errs, errors.New("collection.page_size must be at least 1"))
	}
	if c.Collection.PagerWidth < 1 {
		errs = append(errs, errors.New("collection.pager_width must be at least 1"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(envPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
