// Package config loads service configuration from defaults, an optional YAML
// file and SITEGEN_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	platformstrings "sitegen/pkg/platform/strings"
)

// Cache backends accepted by Cache.Backend.
const (
	CacheBackendFile     = "file"
	CacheBackendMemory   = "memory"
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Server    Server         `yaml:"server"`
	Registry  Registry       `yaml:"registry"`
	Cache     Cache          `yaml:"cache"`
	Redis     RedisConfig    `yaml:"redis"`
	Postgres  PostgresConfig `yaml:"postgres"`
	Site      Site           `yaml:"site"`
	Retention Retention      `yaml:"retention"`
	Kafka     Kafka          `yaml:"kafka"`
	LogLevel  string         `yaml:"log_level"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string `yaml:"addr"`
}

// Registry configures the remote company registry client.
type Registry struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	// InsecureSkipVerify disables TLS certificate verification. Some hosts
	// lack the registry's CA in their trust store; leave off otherwise.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
	// RatePerSecond throttles outbound lookups; 0 disables the limiter.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	// BreakerFailures trips the circuit after that many consecutive transport
	// failures; 0 disables the breaker.
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// Cache configures the resolution cache.
type Cache struct {
	Backend   string        `yaml:"backend"`
	Dir       string        `yaml:"dir"`
	Freshness time.Duration `yaml:"freshness"`
}

// RedisConfig holds go-redis connection settings.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds the database DSN and pool limits.
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// Site configures templates, outputs, history and packaging.
type Site struct {
	TemplateDir    string `yaml:"template_dir"`
	OutputDir      string `yaml:"output_dir"`
	HistoryFile    string `yaml:"history_file"`
	ArchiveEnabled bool   `yaml:"archive_enabled"`
}

// Retention configures the output directory sweep. A zero Interval disables it.
type Retention struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Interval time.Duration `yaml:"interval"`
}

// Kafka configures the optional pipeline event sink. Empty Brokers keeps
// events in the structured log only.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: Server{Addr: ":8080"},
		Registry: Registry{
			BaseURL:         "https://minhareceita.org",
			Timeout:         10 * time.Second,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
			Burst:           1,
			BreakerCooldown: 30 * time.Second,
		},
		Cache: Cache{
			Backend:   CacheBackendFile,
			Dir:       "./cache",
			Freshness: 24 * time.Hour,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Site: Site{
			TemplateDir:    "./template",
			OutputDir:      "./gerados",
			HistoryFile:    "./historico.json",
			ArchiveEnabled: true,
		},
		Retention: Retention{
			MaxAge:   7 * 24 * time.Hour,
			Interval: time.Hour,
		},
		Kafka:    Kafka{Topic: "sitegen.events"},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("config: redis cache backend requires redis.url"))
		}
	case CacheBackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("config: postgres cache backend requires postgres.dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.Freshness <= 0 {
		errs = append(errs, errors.New("config: cache.freshness must be positive"))
	}
	if c.Registry.Timeout <= 0 {
		errs = append(errs, errors.New("config: registry.timeout must be positive"))
	}
	if c.Registry.BaseURL == "" {
		errs = append(errs, errors.New("config: registry.base_url is required"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("config: kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

func applyEnv(c *Config) {
	c.Server.Addr = getEnv("SITEGEN_ADDR", c.Server.Addr)

	c.Registry.BaseURL = strings.TrimRight(getEnv("SITEGEN_REGISTRY_URL", c.Registry.BaseURL), "/")
	c.Registry.Timeout = getEnvDuration("SITEGEN_REGISTRY_TIMEOUT", c.Registry.Timeout)
	c.Registry.UserAgent = getEnv("SITEGEN_REGISTRY_USER_AGENT", c.Registry.UserAgent)
	c.Registry.InsecureSkipVerify = getEnvBool("SITEGEN_REGISTRY_INSECURE_TLS", c.Registry.InsecureSkipVerify)
	c.Registry.RatePerSecond = getEnvFloat("SITEGEN_REGISTRY_RATE", c.Registry.RatePerSecond)
	c.Registry.Burst = getEnvInt("SITEGEN_REGISTRY_BURST", c.Registry.Burst)
	c.Registry.BreakerFailures = uint32(getEnvInt("SITEGEN_REGISTRY_BREAKER_FAILURES", int(c.Registry.BreakerFailures)))
	c.Registry.BreakerCooldown = getEnvDuration("SITEGEN_REGISTRY_BREAKER_COOLDOWN", c.Registry.BreakerCooldown)

	c.Cache.Backend = getEnv("SITEGEN_CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Dir = getEnv("SITEGEN_CACHE_DIR", c.Cache.Dir)
	c.Cache.Freshness = getEnvDuration("SITEGEN_CACHE_FRESHNESS", c.Cache.Freshness)

	c.Redis.URL = getEnv("SITEGEN_REDIS_URL", c.Redis.URL)
	c.Postgres.DSN = getEnv("SITEGEN_POSTGRES_DSN", c.Postgres.DSN)

	c.Site.TemplateDir = getEnv("SITEGEN_TEMPLATE_DIR", c.Site.TemplateDir)
	c.Site.OutputDir = getEnv("SITEGEN_OUTPUT_DIR", c.Site.OutputDir)
	c.Site.HistoryFile = getEnv("SITEGEN_HISTORY_FILE", c.Site.HistoryFile)
	c.Site.ArchiveEnabled = getEnvBool("SITEGEN_ARCHIVE_ENABLED", c.Site.ArchiveEnabled)

	c.Retention.MaxAge = getEnvDuration("SITEGEN_RETENTION_MAX_AGE", c.Retention.MaxAge)
	c.Retention.Interval = getEnvDuration("SITEGEN_RETENTION_INTERVAL", c.Retention.Interval)

	if brokers := os.Getenv("SITEGEN_KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = platformstrings.SplitList(brokers)
	}
	c.Kafka.Topic = getEnv("SITEGEN_KAFKA_TOPIC", c.Kafka.Topic)

	c.LogLevel = getEnv("SITEGEN_LOG_LEVEL", c.LogLevel)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to defaultValue when the variable is unset or not an integer.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool recognizes true/1/yes and false/0/no, case-insensitively.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
