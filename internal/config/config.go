// Package config loads the engine's YAML configuration: driver periods,
// decay and recovery rates, history bounds, and the optional journal.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration marks construction-time configuration errors.
// Validate wraps every failure with it so callers can errors.Is without
// matching message text.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config is the engine configuration loaded from YAML.
type Config struct {
	Energy  EnergyConfig  `yaml:"energy"`
	Pattern PatternConfig `yaml:"pattern"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// EnergyConfig tunes the resource ledger and its driver.
type EnergyConfig struct {
	// TickInterval is the energy driver period, e.g. "1s"
	TickInterval string `yaml:"tick_interval"`
	// RecoveryRate is charge gained per simulated minute while charging
	RecoveryRate float64 `yaml:"recovery_rate"`
	// DecayRate is charge lost per simulated minute while discharging
	DecayRate float64 `yaml:"decay_rate"`
	// Capacity is the primary resource's capacity
	Capacity float64 `yaml:"capacity"`
}

// PatternConfig tunes the pattern registry and its driver.
type PatternConfig struct {
	// TickInterval is the pattern driver period, e.g. "5s"
	TickInterval string `yaml:"tick_interval"`
	// HistoryLimit bounds each pattern's history ring
	HistoryLimit int `yaml:"history_limit"`
}

// JournalConfig controls the optional sqlite snapshot journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path is the sqlite database file, e.g. ".pulse/journal.db"
	Path string `yaml:"path"`
}

// LogConfig controls CLI logging.
type LogConfig struct {
	// Level: "debug", "info", "warn", or "error"
	Level string `yaml:"level"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Energy: EnergyConfig{
			TickInterval: "1s",
			RecoveryRate: 0.05,
			DecayRate:    0.05,
			Capacity:     1.0,
		},
		Pattern: PatternConfig{
			TickInterval: "5s",
			HistoryLimit: 100,
		},
		Journal: JournalConfig{
			Enabled: false,
			Path:    ".pulse/journal.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return config, nil
}

// SaveDefault writes the default configuration to a file.
func SaveDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// EnergyTickInterval parses the energy driver period.
func (c *Config) EnergyTickInterval() (time.Duration, error) {
	return parseDuration(c.Energy.TickInterval)
}

// PatternTickInterval parses the pattern driver period.
func (c *Config) PatternTickInterval() (time.Duration, error) {
	return parseDuration(c.Pattern.TickInterval)
}

// Validate checks the configuration for construction-time errors.
func (c *Config) Validate() error {
	if _, err := c.EnergyTickInterval(); err != nil {
		return fmt.Errorf("%w: energy.tick_interval %q: %v", ErrInvalidConfiguration, c.Energy.TickInterval, err)
	}
	if _, err := c.PatternTickInterval(); err != nil {
		return fmt.Errorf("%w: pattern.tick_interval %q: %v", ErrInvalidConfiguration, c.Pattern.TickInterval, err)
	}
	if c.Energy.Capacity <= 0 {
		return fmt.Errorf("%w: energy.capacity must be positive (got %v)", ErrInvalidConfiguration, c.Energy.Capacity)
	}
	if c.Energy.RecoveryRate <= 0 || c.Energy.DecayRate <= 0 {
		return fmt.Errorf("%w: energy rates must be positive (got recovery=%v decay=%v)",
			ErrInvalidConfiguration, c.Energy.RecoveryRate, c.Energy.DecayRate)
	}
	if c.Pattern.HistoryLimit <= 0 {
		return fmt.Errorf("%w: pattern.history_limit must be positive (got %d)", ErrInvalidConfiguration, c.Pattern.HistoryLimit)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfiguration, c.Log.Level)
	}
	return nil
}

// parseDuration extends time.ParseDuration to support days and weeks.
func parseDuration(s string) (time.Duration, error) {
	// Handle days (e.g., "7d")
	var days int
	if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
		return time.Duration(days) * 24 * time.Hour, nil
	}

	// Handle weeks (e.g., "2w")
	var weeks int
	if _, err := fmt.Sscanf(s, "%dw", &weeks); err == nil {
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}
