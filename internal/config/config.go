// Package config loads and validates the watchdog configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultPath is where the configuration file lives unless overridden.
const DefaultPath = "gpuguard_config.json"

// Config is the configuration record for one watchdog run.
// Immutable after load: constructed once at startup and passed into
// components by value.
type Config struct {
	TempThreshold float64  `json:"temp_threshold"` // Celsius
	CheckInterval int      `json:"check_interval"` // seconds
	GracePeriod   int      `json:"grace_period"`   // seconds
	ProcessNames  []string `json:"process_names"`  // case-sensitive fragments
	LogLevel      string   `json:"log_level"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		TempThreshold: 85.0,
		CheckInterval: 10,
		GracePeriod:   30,
		ProcessNames:  []string{"t-rex.exe", "trex.exe", "t-rex", "trex"},
		LogLevel:      "INFO",
	}
}

var validLogLevels = map[string]bool{
	"DEBUG": true,
	"INFO":  true,
	"WARN":  true,
	"ERROR": true,
}

// Validate rejects a record before the loop starts. A missing field
// decodes to its zero value and fails here.
func (c Config) Validate() error {
	if c.TempThreshold <= 0 {
		return fmt.Errorf("temp_threshold must be > 0, got %v", c.TempThreshold)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be > 0, got %d", c.CheckInterval)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace_period must be >= 0, got %d", c.GracePeriod)
	}
	if len(c.ProcessNames) == 0 {
		return fmt.Errorf("process_names must list at least one name fragment")
	}
	for _, n := range c.ProcessNames {
		if n == "" {
			return fmt.Errorf("process_names must not contain empty fragments")
		}
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of DEBUG, INFO, WARN, ERROR, got %q", c.LogLevel)
	}
	return nil
}

// CheckIntervalDuration returns the sampling cadence as a duration.
func (c Config) CheckIntervalDuration() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// GracePeriodDuration returns the graceful-wait ceiling as a duration.
func (c Config) GracePeriodDuration() time.Duration {
	return time.Duration(c.GracePeriod) * time.Second
}

// Load reads and validates the configuration file at path.
// Callers detect an absent file with errors.Is(err, os.ErrNotExist).
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("malformed config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path, overwriting
// any existing file.
func WriteDefault(path string) error {
	data, err := json.MarshalIndent(Default(), "", "    ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
