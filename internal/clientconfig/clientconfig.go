// Package clientconfig loads the liftctl terminal client configuration.
package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LIFTCTL_"

// Cache backends.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

// Config is the liftctl configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Session SessionConfig `yaml:"session"`
	Sound   SoundConfig   `yaml:"sound"`
}

// ServerConfig points the client at the liftplan API.
type ServerConfig struct {
	URL     string        `yaml:"url"     env:"SERVER_URL"`
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"SERVER_TIMEOUT"`
}

// CacheConfig selects where in-progress sessions are mirrored.
type CacheConfig struct {
	Backend   string        `yaml:"backend"    env:"CACHE_BACKEND"`
	Path      string        `yaml:"path"       env:"CACHE_PATH"`
	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisTTL  time.Duration `yaml:"redis_ttl"  env:"REDIS_TTL"`
}

// SessionConfig tunes the active session engine.
type SessionConfig struct {
	AutosaveDelay      time.Duration `yaml:"autosave_delay"       env:"AUTOSAVE_DELAY"`
	DefaultRestSeconds int           `yaml:"default_rest_seconds" env:"DEFAULT_REST_SECONDS"`
}

// SoundConfig names the rest-timer sound. Empty values fall back to the terminal bell.
type SoundConfig struct {
	Player string `yaml:"player" env:"SOUND_PLAYER"`
	Path   string `yaml:"path"   env:"SOUND_PATH"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cachePath := "liftctl-cache.db"
	if dir, err := os.UserCacheDir(); err == nil {
		cachePath = filepath.Join(dir, "liftplan", "cache.db")
	}

	return &Config{
		Server: ServerConfig{
			URL:     "http://localhost:8080",
			APIKey:  "",
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   CacheSQLite,
			Path:      cachePath,
			RedisAddr: "localhost:6379",
			RedisTTL:  7 * 24 * time.Hour,
		},
		Session: SessionConfig{
			AutosaveDelay:      5 * time.Second,
			DefaultRestSeconds: 90,
		},
		Sound: SoundConfig{},
	}
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "liftctl.yaml"
	}
	return filepath.Join(dir, "liftplan", "liftctl.yaml")
}

// Load reads config from a YAML file, then applies LIFTCTL_* environment
// overrides. An empty path reads DefaultPath and tolerates it being absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err = env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err = cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	switch c.Cache.Backend {
	case CacheSQLite:
		if c.Cache.Path == "" {
			return errors.New("cache.path is required for the sqlite backend")
		}
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	case CacheMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Session.AutosaveDelay <= 0 {
		return errors.New("session.autosave_delay must be positive")
	}
	if c.Session.DefaultRestSeconds < 0 {
		return errors.New("session.default_rest_seconds must not be negative")
	}
	return nil
}
