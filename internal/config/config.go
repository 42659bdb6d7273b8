// Package config holds the tool-level settings: where the artifact
// store lives, how wide the worker pools run, and the trial execution
// budget. Experiment definitions are separate; see experiment.Spec.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig selects the artifact store backend.
type StoreConfig struct {
	// Backend is "fs" or "sqlite".
	Backend string `yaml:"backend"`

	// Root is the store directory (fs) or database file (sqlite).
	Root string `yaml:"root"`
}

// TrialConfig is the execution budget for driven programs.
type TrialConfig struct {
	// Timeout bounds one program invocation.
	Timeout time.Duration `yaml:"timeout"`

	// Repeat settings; a zero StddevWindow runs every trial once.
	MinRepeats   int     `yaml:"min_repeats"`
	MaxRepeats   int     `yaml:"max_repeats"`
	StddevWindow float64 `yaml:"stddev_window"`
	YLimit       float64 `yaml:"y_limit"`
}

// Config is the full tool configuration.
type Config struct {
	Store   StoreConfig `yaml:"store"`
	Trial   TrialConfig `yaml:"trial"`
	Workers int         `yaml:"workers"`

	// OutputDir receives rendered figures.
	OutputDir string `yaml:"output_dir"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "fs",
			Root:    ".frexp",
		},
		Trial: TrialConfig{
			Timeout:    5 * time.Minute,
			MinRepeats: 1,
			MaxRepeats: 20,
		},
		Workers:   4,
		OutputDir: "out",
		LogLevel:  "info",
	}
}

// Load reads the config file at path, falling back to defaults when it
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the rest of the tool cannot work with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "fs", "sqlite":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if c.Trial.MaxRepeats > 0 && c.Trial.MinRepeats > c.Trial.MaxRepeats {
		return fmt.Errorf("config: min_repeats %d exceeds max_repeats %d",
			c.Trial.MinRepeats, c.Trial.MaxRepeats)
	}
	return nil
}

// applyEnv layers FREXP_* environment variables over the file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("FREXP_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("FREXP_STORE_ROOT"); v != "" {
		c.Store.Root = v
	}
	if v := os.Getenv("FREXP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv("FREXP_TRIAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Trial.Timeout = d
		}
	}
	if v := os.Getenv("FREXP_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("FREXP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
