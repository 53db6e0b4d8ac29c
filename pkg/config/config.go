// Package config loads pkghealth settings.
//
// Settings come from three layers, later ones winning:
//
//  1. Built-in defaults ([Default])
//  2. An optional TOML file (pkghealth.toml or --config)
//  3. Environment variables, optionally seeded from a .env file
//
// Environment variables:
//
//	PKGHEALTH_ADDR            server listen address
//	PORT                      shorthand for PKGHEALTH_ADDR=":$PORT"
//	PKGHEALTH_REGISTRY_URL    npm registry base URL
//	PKGHEALTH_ANALYSIS_URL    npms.io API base URL
//	PKGHEALTH_CACHE_BACKEND   memory, redis, mongo, file or none
//	PKGHEALTH_CACHE_DIR       file cache directory
//	PKGHEALTH_CACHE_PREFIX    key prefix applied to every cache entry
//	PKGHEALTH_LOG_LEVEL       debug, info, warn or error
//	REDIS_URL                 Redis connection URL
//	MONGODB_URI               MongoDB connection URI
package config

import (
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/pkghealth/pkg/errors"
)

// DefaultFile is the config file looked up in the working directory when
// no path is given.
const DefaultFile = "pkghealth.toml"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendFile   = "file"
	BackendNone   = "none"
)

var backends = []string{BackendMemory, BackendRedis, BackendMongo, BackendFile, BackendNone}

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Registry UpstreamConfig `toml:"registry"`
	Analysis UpstreamConfig `toml:"analysis"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `toml:"addr"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// UpstreamConfig configures one upstream HTTP API.
type UpstreamConfig struct {
	URL       string        `toml:"url"`
	Timeout   time.Duration `toml:"timeout"`
	RateLimit float64       `toml:"rate_limit"` // requests per second, 0 = unlimited
	Retries   int           `toml:"retries"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend         string `toml:"backend"`
	RedisURL        string `toml:"redis_url"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
	Dir             string `toml:"dir"`
	Prefix          string `toml:"prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 60 * time.Second,
		},
		Registry: UpstreamConfig{
			URL:     "https://registry.npmjs.org",
			Timeout: 10 * time.Second,
			Retries: 3,
		},
		Analysis: UpstreamConfig{
			URL:     "https://api.npms.io/v2",
			Timeout: 10 * time.Second,
			Retries: 2,
		},
		Cache: CacheConfig{
			MongoDatabase:   "pkghealth",
			MongoCollection: "cache",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds a Config from defaults, the TOML file at path and the
// process environment. An empty path reads DefaultFile if it exists; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
		}
	case explicit || !os.IsNotExist(err):
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment without overriding variables
// that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides settings from environment variables read via getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		c.Server.Addr = ":" + port
	}
	set(&c.Server.Addr, "PKGHEALTH_ADDR")
	set(&c.Registry.URL, "PKGHEALTH_REGISTRY_URL")
	set(&c.Analysis.URL, "PKGHEALTH_ANALYSIS_URL")
	set(&c.Cache.Backend, "PKGHEALTH_CACHE_BACKEND")
	set(&c.Cache.Dir, "PKGHEALTH_CACHE_DIR")
	set(&c.Cache.Prefix, "PKGHEALTH_CACHE_PREFIX")
	set(&c.Cache.RedisURL, "REDIS_URL")
	set(&c.Cache.MongoURI, "MONGODB_URI")
	set(&c.Log.Level, "PKGHEALTH_LOG_LEVEL")

	if v := strings.TrimSpace(getenv("PKGHEALTH_REGISTRY_RATE_LIMIT")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Registry.RateLimit = f
		}
	}
}

// CacheBackend returns the configured backend. Without an explicit choice,
// Redis is used when a Redis URL is set and memory otherwise.
func (c *Config) CacheBackend() string {
	if b := strings.ToLower(strings.TrimSpace(c.Cache.Backend)); b != "" {
		return b
	}
	if c.Cache.RedisURL != "" {
		return BackendRedis
	}
	return BackendMemory
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	backend := c.CacheBackend()
	if !slices.Contains(backends, backend) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (want one of %s)", backend, strings.Join(backends, ", "))
	}
	if backend == BackendRedis && c.Cache.RedisURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache backend redis requires redis_url or REDIS_URL")
	}
	if backend == BackendMongo && c.Cache.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache backend mongo requires mongo_uri or MONGODB_URI")
	}
	if c.Registry.URL == "" || c.Analysis.URL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "registry and analysis URLs must be set")
	}
	for name, u := range map[string]UpstreamConfig{"registry": c.Registry, "analysis": c.Analysis} {
		if u.Timeout < 0 || u.RateLimit < 0 || u.Retries < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "%s: timeout, rate_limit and retries must not be negative", name)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown log level %q", c.Log.Level)
	}
	return nil
}
