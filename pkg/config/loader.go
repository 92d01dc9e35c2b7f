// Package config provides configuration loading and management for pitchscope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/armorclaw/pitchscope/pkg/logger"
)

// Load loads configuration from a file path
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, p := range ConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Global().Warn("unknown configuration keys ignored", "path", path, "keys", strings.Join(keys, ", "))
		}
	} else {
		logger.Global().Warn("no configuration file found, using defaults",
			"checked", strings.Join(ConfigPaths(), ", "),
			"hint", "create one with: pitchscope init",
		)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDie loads configuration or exits on error
func LoadOrDie(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func envBool(v string) bool {
	return v == "true" || v == "1"
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) error {
	// Server overrides
	if v := os.Getenv("PITCHSCOPE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PITCHSCOPE_RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PITCHSCOPE_RATE_LIMIT: %w", err)
		}
		cfg.Server.RateLimit = limit
	}
	if v := os.Getenv("PITCHSCOPE_RATE_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PITCHSCOPE_RATE_BURST: %w", err)
		}
		cfg.Server.RateBurst = burst
	}

	// Error aggregation overrides
	if v := os.Getenv("PITCHSCOPE_ERRORS_MAX_RECORDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PITCHSCOPE_ERRORS_MAX_RECORDS: %w", err)
		}
		cfg.Errors.MaxRecords = n
	}
	if v := os.Getenv("PITCHSCOPE_STORE_ENABLED"); v != "" {
		cfg.Errors.Store.Enabled = envBool(v)
	}
	if v := os.Getenv("PITCHSCOPE_STORE_PATH"); v != "" {
		cfg.Errors.Store.Path = v
	}
	if v := os.Getenv("PITCHSCOPE_STORE_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PITCHSCOPE_STORE_RETENTION_DAYS: %w", err)
		}
		cfg.Errors.Store.RetentionDays = days
	}
	if v := os.Getenv("PITCHSCOPE_STORE_CLEANUP_SCHEDULE"); v != "" {
		cfg.Errors.Store.CleanupSchedule = v
	}

	if v := os.Getenv("PITCHSCOPE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = envBool(v)
	}

	// Logging overrides
	if v := os.Getenv("PITCHSCOPE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PITCHSCOPE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PITCHSCOPE_LOG_OUTPUT"); v != "" {
		cfg.Logging.Output = v
	}
	if v := os.Getenv("PITCHSCOPE_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	return nil
}

// Save saves the configuration to a file
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Forward slashes keep Windows paths from being read back as TOML escapes
	cfgCopy := *cfg
	cfgCopy.Errors.Store.Path = filepath.ToSlash(cfg.Errors.Store.Path)
	if cfgCopy.Logging.File != "" {
		cfgCopy.Logging.File = filepath.ToSlash(cfgCopy.Logging.File)
	}

	data, err := toml.Marshal(&cfgCopy)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateExampleConfig generates an example configuration file
func GenerateExampleConfig(path string) error {
	cfg := DefaultConfig()

	cfg.Errors.Store.Enabled = true
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	cfg.Logging.Level = "info"

	return Save(cfg, path)
}
