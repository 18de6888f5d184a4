package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// MinSearchQueryLength is the shortest query the taxonomy search endpoint accepts.
const MinSearchQueryLength = 2

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	API        APIConfig        `mapstructure:"api"`
	Assignment AssignmentConfig `mapstructure:"assignment"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

// ServerConfig holds the session API listener configuration
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Host        string `mapstructure:"host"`
	WaitTimeout int    `mapstructure:"wait_timeout"` // Milliseconds a handler waits for a lookup to settle
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// APIConfig holds the storefront REST backend configuration
type APIConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	TaxonomyPrefix       string   `mapstructure:"taxonomy_prefix"`
	Token                string   `mapstructure:"token"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	CircuitBreakerDelay  int      `mapstructure:"circuit_breaker_delay"` // Seconds requests stay blocked after HTTP 429
	Proxies              []string `mapstructure:"proxies"`
}

// AssignmentConfig tunes the category assignment workflow
type AssignmentConfig struct {
	DebounceMS     int `mapstructure:"debounce_ms"`
	MinQueryLength int `mapstructure:"min_query_length"`
	SearchLimit    int `mapstructure:"search_limit"`
	SessionTTL     int `mapstructure:"session_ttl"` // Seconds
}

// CacheConfig sizes the in-process cache
type CacheConfig struct {
	MaxCostBytes     int64 `mapstructure:"max_cost_bytes"`
	BrowseTTL        int   `mapstructure:"browse_ttl"`        // Seconds
	TenantCategories int   `mapstructure:"tenant_categories"` // Seconds
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
	MaxDeliveries int    `mapstructure:"max_deliveries"` // Attempts before a pending event is dropped
	Workers       int    `mapstructure:"workers"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads config.yaml from the given directories (the working directory when none
// are given) with environment variable overrides.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config.yaml file not found in %s", strings.Join(paths, ", "))
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Assignment.MinQueryLength < MinSearchQueryLength {
		return fmt.Errorf("assignment.min_query_length must be at least %d", MinSearchQueryLength)
	}
	if c.Assignment.DebounceMS < 0 {
		return errors.New("assignment.debounce_ms must not be negative")
	}
	if c.Assignment.SessionTTL <= 0 {
		return errors.New("assignment.session_ttl must be positive")
	}
	if c.Redis.MinIdleTime <= 0 {
		return errors.New("redis.min_idle_time must be positive")
	}
	if c.Redis.MaxDeliveries <= 0 {
		return errors.New("redis.max_deliveries must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.wait_timeout", 5000)

	v.SetDefault("log.level", "info")

	v.SetDefault("api.base_url", "http://localhost:3001/api")
	v.SetDefault("api.taxonomy_prefix", "/taxonomy")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 15)
	v.SetDefault("api.max_retries", 0)
	v.SetDefault("api.max_requests_per_second", 20)
	v.SetDefault("api.circuit_breaker_delay", 60)
	v.SetDefault("api.proxies", []string{})

	v.SetDefault("assignment.debounce_ms", 300)
	v.SetDefault("assignment.min_query_length", 2)
	v.SetDefault("assignment.search_limit", 20)
	v.SetDefault("assignment.session_ttl", 1800)

	v.SetDefault("cache.max_cost_bytes", 64<<20)
	v.SetDefault("cache.browse_ttl", 3600)
	v.SetDefault("cache.tenant_categories", 60)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "storefront")
	v.SetDefault("database.user", "storefront_user")
	v.SetDefault("database.password", "storefront_pass")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "categorizer_consumer")
	v.SetDefault("redis.min_idle_time", 120)
	v.SetDefault("redis.max_deliveries", 5)
	v.SetDefault("redis.workers", 2)
}
