// Package config provides configuration management for pitchscope.
// Supports TOML configuration files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	pserrors "github.com/armorclaw/pitchscope/pkg/errors"
	"github.com/armorclaw/pitchscope/pkg/tone"
)

// Helper function to validate directory exists or can be created
func validateDirectoryWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}

	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("cannot write to directory: %w", err)
	}
	f.Close()
	os.Remove(testFile)

	return nil
}

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds all pitchscope configuration
type Config struct {
	// Server configuration
	Server ServerConfig `toml:"server"`

	// Error aggregation configuration
	Errors ErrorsConfig `toml:"errors"`

	// Reference tone configuration
	Tone ToneConfig `toml:"tone"`

	// Metrics configuration
	Metrics MetricsConfig `toml:"metrics"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// Addr is the listen address
	Addr string `toml:"addr" env:"PITCHSCOPE_ADDR"`

	// AllowedOrigins lists origins allowed to open the error stream (empty = same origin only)
	AllowedOrigins []string `toml:"allowed_origins"`

	// RateLimit is the sustained API request rate per second (0 = unlimited)
	RateLimit float64 `toml:"rate_limit" env:"PITCHSCOPE_RATE_LIMIT"`

	// RateBurst is the limiter bucket size
	RateBurst int `toml:"rate_burst" env:"PITCHSCOPE_RATE_BURST"`

	// ReadTimeout bounds reading a request
	ReadTimeout string `toml:"read_timeout"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// ErrorsConfig holds error aggregator configuration
type ErrorsConfig struct {
	// MaxRecords bounds the in-memory log (negative = unbounded)
	MaxRecords int `toml:"max_records" env:"PITCHSCOPE_ERRORS_MAX_RECORDS"`

	// SinkBuffer is the persistence queue size
	SinkBuffer int `toml:"sink_buffer"`

	// Store configuration
	Store StoreConfig `toml:"store"`
}

// StoreConfig holds error store configuration
type StoreConfig struct {
	// Enabled persists captured records to SQLite
	Enabled bool `toml:"enabled" env:"PITCHSCOPE_STORE_ENABLED"`

	// Path is the SQLite database file
	Path string `toml:"path" env:"PITCHSCOPE_STORE_PATH"`

	// RetentionDays is how long stored records are kept
	RetentionDays int `toml:"retention_days" env:"PITCHSCOPE_STORE_RETENTION_DAYS"`

	// CleanupSchedule is a cron spec for retention cleanup
	CleanupSchedule string `toml:"cleanup_schedule" env:"PITCHSCOPE_STORE_CLEANUP_SCHEDULE"`
}

// ToneConfig holds reference tone configuration
type ToneConfig struct {
	// SampleRate of rendered tones in Hz
	SampleRate int `toml:"sample_rate"`

	// DefaultDuration is used when a request names no duration
	DefaultDuration string `toml:"default_duration"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" env:"PITCHSCOPE_METRICS_ENABLED"`
	Path    string `toml:"path"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `toml:"level" env:"PITCHSCOPE_LOG_LEVEL"`

	// Format is the log format (json, text)
	Format string `toml:"format" env:"PITCHSCOPE_LOG_FORMAT"`

	// Output is the log output (stdout, stderr, or file)
	Output string `toml:"output" env:"PITCHSCOPE_LOG_OUTPUT"`

	// File is the log file path when output is "file"
	File string `toml:"file" env:"PITCHSCOPE_LOG_FILE"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8440",
			AllowedOrigins:  []string{},
			RateLimit:       20,
			RateBurst:       40,
			ReadTimeout:     "10s",
			ShutdownTimeout: "10s",
		},
		Errors: ErrorsConfig{
			MaxRecords: pserrors.DefaultMaxRecords,
			SinkBuffer: 256,
			Store: StoreConfig{
				Enabled:         false,
				Path:            filepath.Join(homeDir, ".pitchscope", "errors.db"),
				RetentionDays:   30,
				CleanupSchedule: "@hourly",
			},
		},
		Tone: ToneConfig{
			SampleRate:      tone.DefaultSampleRate,
			DefaultDuration: "1s",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// ConfigPaths returns the list of default configuration file paths to check
func ConfigPaths() []string {
	homeDir, _ := os.UserHomeDir()
	return []string{
		filepath.Join(homeDir, ".pitchscope", "config.toml"),
		filepath.Join("/etc", "pitchscope", "config.toml"),
		"./config.toml",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalidConfig)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: server.rate_limit cannot be negative", ErrInvalidConfig)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("%w: server.rate_burst must be at least 1 when rate limiting", ErrInvalidConfig)
	}
	if _, err := parseDuration("server.read_timeout", c.Server.ReadTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("server.shutdown_timeout", c.Server.ShutdownTimeout); err != nil {
		return err
	}

	if c.Errors.SinkBuffer < 0 {
		return fmt.Errorf("%w: errors.sink_buffer cannot be negative", ErrInvalidConfig)
	}

	if c.Errors.Store.Enabled {
		if c.Errors.Store.Path == "" {
			return fmt.Errorf("%w: errors.store.path is required when the store is enabled", ErrInvalidConfig)
		}

		storeDir := filepath.Dir(c.Errors.Store.Path)
		if err := validateDirectoryWritable(storeDir); err != nil {
			return fmt.Errorf("%w: store directory %s: %w", ErrInvalidConfig, storeDir, err)
		}

		if c.Errors.Store.RetentionDays < 1 {
			return fmt.Errorf("%w: errors.store.retention_days must be at least 1", ErrInvalidConfig)
		}

		if _, err := cron.ParseStandard(c.Errors.Store.CleanupSchedule); err != nil {
			return fmt.Errorf("%w: errors.store.cleanup_schedule: %w", ErrInvalidConfig, err)
		}
	}

	if c.Tone.SampleRate < 8000 || c.Tone.SampleRate > 192000 {
		return fmt.Errorf("%w: tone.sample_rate must be between 8000 and 192000", ErrInvalidConfig)
	}
	d, err := parseDuration("tone.default_duration", c.Tone.DefaultDuration)
	if err != nil {
		return err
	}
	if d <= 0 || d > tone.MaxDuration {
		return fmt.Errorf("%w: tone.default_duration must be in (0, %s]", ErrInvalidConfig, tone.MaxDuration)
	}

	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return fmt.Errorf("%w: metrics.path must start with /", ErrInvalidConfig)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("%w: logging.level must be one of: debug, info, warn, error", ErrInvalidConfig)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("%w: logging.format must be one of: json, text", ErrInvalidConfig)
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("%w: logging.output must be one of: stdout, stderr, file", ErrInvalidConfig)
	}

	if c.Logging.Output == "file" && c.Logging.File == "" {
		return fmt.Errorf("%w: logging.file is required when logging.output is 'file'", ErrInvalidConfig)
	}

	return nil
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s cannot be negative", ErrInvalidConfig, key)
	}
	return d, nil
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetReadTimeout returns the request read timeout
func (c *Config) GetReadTimeout() time.Duration {
	return durationOr(c.Server.ReadTimeout, 10*time.Second)
}

// GetShutdownTimeout returns the graceful shutdown deadline
func (c *Config) GetShutdownTimeout() time.Duration {
	return durationOr(c.Server.ShutdownTimeout, 10*time.Second)
}

// GetToneDuration returns the default reference tone length
func (c *Config) GetToneDuration() time.Duration {
	return durationOr(c.Tone.DefaultDuration, time.Second)
}

// LogOutput returns the logger output target (stdout, stderr or a file path)
func (c *Config) LogOutput() string {
	if c.Logging.Output == "file" {
		return c.Logging.File
	}
	return c.Logging.Output
}

// ToStoreConfig converts the Config to errors.StoreConfig
func (c *Config) ToStoreConfig() pserrors.StoreConfig {
	return pserrors.StoreConfig{
		Path:          c.Errors.Store.Path,
		RetentionDays: c.Errors.Store.RetentionDays,
	}
}
