// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Result store backends.
const (
	ResultStoreMemory = "memory"
	ResultStoreRedis  = "redis"
)

// Static errors for configuration validation.
var (
	// ErrUnknownResultStore is returned when RESULT_STORE names no known backend.
	ErrUnknownResultStore = errors.New("config: RESULT_STORE must be memory or redis")
	// ErrRedisURLRequired is returned when the redis backend has no REDIS_URL.
	ErrRedisURLRequired = errors.New("config: REDIS_URL is required when RESULT_STORE=redis")
	// ErrInvalidTimeout is returned for non-positive timeouts.
	ErrInvalidTimeout = errors.New("config: timeouts must be positive")
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_PROCESSES is not positive.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_PROCESSES must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port          int    `env:"PORT, default=8080" json:"port"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" json:"public_base_url,omitempty"` // Prefix of returned download URLs

	// Storage settings
	StorageDir  string `env:"STORAGE_DIR, default=/tmp/transcode-api" json:"storage_dir"`
	ResultStore string `env:"RESULT_STORE, default=memory" json:"result_store"` // "memory" or "redis"
	RedisURL    string `env:"REDIS_URL" json:"-"`                               // May embed a password

	// Processing settings
	FFmpegPath             string        `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	ProcessTimeout         time.Duration `env:"PROCESS_TIMEOUT, default=60s" json:"process_timeout"`
	MergeTimeout           time.Duration `env:"MERGE_TIMEOUT, default=10m" json:"merge_timeout"`
	FetchTimeout           time.Duration `env:"FETCH_TIMEOUT, default=5m" json:"fetch_timeout"`
	MaxConcurrentProcesses int           `env:"MAX_CONCURRENT_PROCESSES, default=4" json:"max_concurrent_processes"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"` // Key prefix, e.g. "artifacts/"
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	return LoadFrom(envconfig.OsLookuper())
}

// LoadFrom reads configuration from l.
func LoadFrom(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	switch strings.ToLower(c.ResultStore) {
	case ResultStoreMemory:
	case ResultStoreRedis:
		if c.RedisURL == "" {
			return ErrRedisURLRequired
		}
	default:
		return ErrUnknownResultStore
	}
	if c.ProcessTimeout <= 0 || c.MergeTimeout <= 0 || c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxConcurrentProcesses <= 0 {
		return ErrInvalidConcurrency
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stdout)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, PublicBaseURL: %s, StorageDir: %s, ResultStore: %s, RedisURL: %s, FFmpegPath: %s, ProcessTimeout: %s, MergeTimeout: %s, FetchTimeout: %s, MaxConcurrentProcesses: %d, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, S3Prefix: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.PublicBaseURL,
		c.StorageDir,
		c.ResultStore,
		mask(c.RedisURL),
		c.FFmpegPath,
		c.ProcessTimeout,
		c.MergeTimeout,
		c.FetchTimeout,
		c.MaxConcurrentProcesses,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.S3Prefix,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
