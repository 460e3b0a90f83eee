// Package config provides configuration loading and management for tripweave.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use duration strings
// like "30s" or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the complete tripweave configuration.
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	Database   DatabaseConfig            `yaml:"database"`
	Redis      RedisConfig               `yaml:"redis"`
	NATS       NATSConfig                `yaml:"nats"`
	Generation GenerationConfig          `yaml:"generation"`
	Endpoints  map[string]EndpointConfig `yaml:"endpoints"`
	Cache      CacheConfig               `yaml:"cache"`
	Auth       AuthConfig                `yaml:"auth"`
	RateLimit  RateLimitConfig           `yaml:"ratelimit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig configures Postgres. An empty DSN selects the in-memory
// store (dev mode).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures Redis for sessions and rate limiting. An empty
// address selects in-memory sessions.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig configures the event publisher. An empty URL disables events.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// GenerationConfig configures the model cascade and its retry policy.
type GenerationConfig struct {
	// Cascade is the ordered list of model names to try.
	Cascade []string `yaml:"cascade"`

	// MaxAttempts is the maximum number of attempts per model.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffBase is the initial backoff between retries.
	BackoffBase Duration `yaml:"backoff_base"`

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// MaxBackoff caps the backoff duration.
	MaxBackoff Duration `yaml:"max_backoff"`

	// Timeout bounds each model invocation.
	Timeout Duration `yaml:"timeout"`

	// Language is the default response language tag.
	Language string `yaml:"language"`
}

// EndpointConfig describes one named model endpoint.
type EndpointConfig struct {
	Provider  string `yaml:"provider"`
	URL       string `yaml:"url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// CacheConfig configures the generation result cache.
type CacheConfig struct {
	Size int      `yaml:"size"`
	TTL  Duration `yaml:"ttl"`
}

// AuthConfig configures sessions.
type AuthConfig struct {
	SessionTTL Duration `yaml:"session_ttl"`
}

// RateLimitConfig bounds per-user generation throughput.
type RateLimitConfig struct {
	GenerationsPerHour int `yaml:"generations_per_hour"`
}

// DefaultConfig returns a Config with sensible defaults. The default
// cascade points at local endpoints so a dev setup works without keys.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Generation: GenerationConfig{
			Cascade:           []string{"gemini-flash"},
			MaxAttempts:       3,
			BackoffBase:       Duration(time.Second),
			BackoffMultiplier: 2.0,
			MaxBackoff:        Duration(30 * time.Second),
			Timeout:           Duration(30 * time.Second),
			Language:          "en",
		},
		Endpoints: map[string]EndpointConfig{
			"gemini-flash": {
				Provider: "gemini",
				Model:    "gemini-2.0-flash",
			},
		},
		Cache: CacheConfig{
			Size: 512,
			TTL:  Duration(time.Hour),
		},
		Auth: AuthConfig{
			SessionTTL: Duration(720 * time.Hour),
		},
		RateLimit: RateLimitConfig{
			GenerationsPerHour: 20,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if len(c.Generation.Cascade) == 0 {
		return fmt.Errorf("generation.cascade must not be empty")
	}
	for _, name := range c.Generation.Cascade {
		ep, ok := c.Endpoints[name]
		if !ok {
			return fmt.Errorf("cascade model %q has no endpoint", name)
		}
		if ep.Provider == "" {
			return fmt.Errorf("endpoint %q: provider is required", name)
		}
		if ep.Model == "" {
			return fmt.Errorf("endpoint %q: model is required", name)
		}
	}

	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be at least 1")
	}
	if c.Generation.BackoffBase <= 0 {
		return fmt.Errorf("generation.backoff_base must be positive")
	}
	if c.Generation.BackoffMultiplier < 1 {
		return fmt.Errorf("generation.backoff_multiplier must be at least 1")
	}
	if c.Generation.MaxBackoff <= 0 {
		return fmt.Errorf("generation.max_backoff must be positive")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive")
	}
	if c.Generation.Language == "" {
		return fmt.Errorf("generation.language is required")
	}

	if c.Cache.Size < 1 {
		return fmt.Errorf("cache.size must be at least 1")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.RateLimit.GenerationsPerHour < 1 {
		return fmt.Errorf("ratelimit.generations_per_hour must be at least 1")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file. ${VAR} references in
// the file are expanded from the environment before parsing, and a few
// well-known environment variables override their file counterparts.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// applyEnvOverrides lets deployment environments override connection
// targets without editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TRIPWEAVE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}
