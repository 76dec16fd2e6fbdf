// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (MINDMIRROR_* plus DATABASE_URL / REDIS_URL)
//  2. Config file (~/.mindmirror/config.yaml)
//  3. Defaults
//
// Sensitive values (postgres password, API keys) are never logged;
// validation lives in this file with sentinel errors usable via
// errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidCacheBackend indicates an unsupported cache backend name.
	ErrInvalidCacheBackend = errors.New("invalid cache backend")

	// ErrInvalidMinEvidenceChars indicates a non-positive synthesis threshold.
	ErrInvalidMinEvidenceChars = errors.New("invalid minimum evidence length")

	// ErrInvalidModelName indicates an empty inference model name.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTTL indicates a non-positive cache TTL.
	ErrInvalidTTL = errors.New("invalid cache TTL")
)

// Cache backend identifiers used in Config.CacheBackend.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// DefaultMinEvidenceChars is the accumulated-text threshold that
// triggers characteristic synthesis.
const DefaultMinEvidenceChars = 500

// Config stores application configuration.
type Config struct {
	// Inference provider and model
	ModelName    string  `mapstructure:"model_name"`
	Temperature  float32 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	GeminiAPIKey string  `mapstructure:"gemini_api_key"` // SENSITIVE

	// Synthesis trigger and timing
	MinEvidenceChars int           `mapstructure:"min_evidence_chars"`
	SynthTimeout     time.Duration `mapstructure:"synth_timeout"`
	SynthRatePerMin  int           `mapstructure:"synth_rate_per_min"`

	// Storage
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Cache
	CacheBackend  string        `mapstructure:"cache_backend"` // "redis" or "memory"
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"` // SENSITIVE
	RedisDB       int           `mapstructure:"redis_db"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	ProfileTTL    time.Duration `mapstructure:"profile_ttl"`
	BundleTTL     time.Duration `mapstructure:"bundle_ttl"`

	// Notifications (optional, off unless token set)
	TelegramToken  string `mapstructure:"telegram_token"` // SENSITIVE
	TelegramChatID string `mapstructure:"telegram_chat_id"`

	// Tracing (optional, off unless endpoint set)
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`
	ServiceName  string `mapstructure:"service_name"`
}

// Load reads configuration from file, environment and defaults.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".mindmirror"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("MINDMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine: env + defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 2048)

	v.SetDefault("min_evidence_chars", DefaultMinEvidenceChars)
	v.SetDefault("synth_timeout", 60*time.Second)
	v.SetDefault("synth_rate_per_min", 30)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "mindmirror")
	v.SetDefault("postgres_db_name", "mindmirror")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("cache_backend", CacheBackendRedis)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("token_ttl", 30*time.Minute)
	v.SetDefault("profile_ttl", 24*time.Hour)
	v.SetDefault("bundle_ttl", 24*time.Hour)

	v.SetDefault("environment", "dev")
	v.SetDefault("service_name", "mindmirror")
}

// Validate checks configuration invariants. It returns the first
// violated sentinel, wrapped with detail.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	if c.MinEvidenceChars <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinEvidenceChars, c.MinEvidenceChars)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresDBName)
	}
	switch c.CacheBackend {
	case CacheBackendRedis, CacheBackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCacheBackend, c.CacheBackend)
	}
	for name, ttl := range map[string]time.Duration{
		"token_ttl":   c.TokenTTL,
		"profile_ttl": c.ProfileTTL,
		"bundle_ttl":  c.BundleTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidTTL, name, ttl)
		}
	}
	return nil
}
