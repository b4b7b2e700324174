// Package config loads daemon configuration from YAML, JSON or TOML files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by defaults in Normalize.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	Backend    Backend    `json:"backend" yaml:"backend" toml:"backend"`
	Complexity Complexity `json:"complexity" yaml:"complexity" toml:"complexity"`
	Memory     Memory     `json:"memory" yaml:"memory" toml:"memory"`
	Tiers      []string   `json:"tiers" yaml:"tiers" toml:"tiers"`
	Cache      Cache      `json:"cache" yaml:"cache" toml:"cache"`
	Breaker    Breaker    `json:"breaker" yaml:"breaker" toml:"breaker"`
	Retry      Retry      `json:"retry" yaml:"retry" toml:"retry"`
	Health     Health     `json:"health" yaml:"health" toml:"health"`
}

// Backend points at the local inference runtime.
type Backend struct {
	URL               string `json:"url" yaml:"url" toml:"url"`
	APIKey            string `json:"api_key" yaml:"api_key" toml:"api_key"`
	Model             string `json:"model" yaml:"model" toml:"model"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec" toml:"request_timeout_sec"`
	ConnectTimeoutSec int    `json:"connect_timeout_sec" yaml:"connect_timeout_sec" toml:"connect_timeout_sec"`
}

// Complexity tunes the prompt difficulty estimator. Weights of zero fall back
// to the estimator's built-in defaults.
type Complexity struct {
	WeightLength float64  `json:"weight_length" yaml:"weight_length" toml:"weight_length"`
	WeightTerms  float64  `json:"weight_terms" yaml:"weight_terms" toml:"weight_terms"`
	WeightStruct float64  `json:"weight_struct" yaml:"weight_struct" toml:"weight_struct"`
	Terms        []string `json:"terms" yaml:"terms" toml:"terms"`
}

// Memory tunes pressure thresholds and the sampling loop.
type Memory struct {
	SoftPct           float64 `json:"soft_pct" yaml:"soft_pct" toml:"soft_pct"`
	HardPct           float64 `json:"hard_pct" yaml:"hard_pct" toml:"hard_pct"`
	SampleIntervalSec int     `json:"sample_interval_sec" yaml:"sample_interval_sec" toml:"sample_interval_sec"`
	HistorySize       int     `json:"history_size" yaml:"history_size" toml:"history_size"`
}

// Cache tunes the response cache budgets. MaxBytes of zero disables the byte
// budget and leaves only the entry count cap.
type Cache struct {
	MaxEntries int   `json:"max_entries" yaml:"max_entries" toml:"max_entries"`
	MaxBytes   int64 `json:"max_bytes" yaml:"max_bytes" toml:"max_bytes"`
}

// Breaker tunes the backend circuit breaker.
type Breaker struct {
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" toml:"failure_threshold"`
	WindowSec        int `json:"window_sec" yaml:"window_sec" toml:"window_sec"`
	CooldownSec      int `json:"cooldown_sec" yaml:"cooldown_sec" toml:"cooldown_sec"`
}

// Retry tunes the transient-failure retry policy.
type Retry struct {
	MaxAttempts       int `json:"max_attempts" yaml:"max_attempts" toml:"max_attempts"`
	InitialIntervalMS int `json:"initial_interval_ms" yaml:"initial_interval_ms" toml:"initial_interval_ms"`
	MaxIntervalMS     int `json:"max_interval_ms" yaml:"max_interval_ms" toml:"max_interval_ms"`
}

// Health tunes the aggregate health monitor.
type Health struct {
	ProbeTimeoutSec   int `json:"probe_timeout_sec" yaml:"probe_timeout_sec" toml:"probe_timeout_sec"`
	SnapshotMaxAgeSec int `json:"snapshot_max_age_sec" yaml:"snapshot_max_age_sec" toml:"snapshot_max_age_sec"`
	IntervalSec       int `json:"interval_sec" yaml:"interval_sec" toml:"interval_sec"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Normalize fills defaults and validates cross-field constraints.
func (c *Config) Normalize() error {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Backend.URL == "" {
		c.Backend.URL = "http://127.0.0.1:8081"
	}
	if c.Backend.RequestTimeoutSec <= 0 {
		c.Backend.RequestTimeoutSec = 120
	}
	if c.Backend.ConnectTimeoutSec <= 0 {
		c.Backend.ConnectTimeoutSec = 5
	}
	if c.Memory.SoftPct == 0 {
		c.Memory.SoftPct = 80
	}
	if c.Memory.HardPct == 0 {
		c.Memory.HardPct = 90
	}
	if c.Memory.SoftPct >= c.Memory.HardPct {
		return fmt.Errorf("memory.soft_pct (%.1f) must be below memory.hard_pct (%.1f)", c.Memory.SoftPct, c.Memory.HardPct)
	}
	if c.Memory.SampleIntervalSec <= 0 {
		c.Memory.SampleIntervalSec = 5
	}
	if c.Memory.HistorySize <= 0 {
		c.Memory.HistorySize = 10
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 100
	}
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.WindowSec <= 0 {
		c.Breaker.WindowSec = 60
	}
	if c.Breaker.CooldownSec <= 0 {
		c.Breaker.CooldownSec = 30
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialIntervalMS <= 0 {
		c.Retry.InitialIntervalMS = 2000
	}
	if c.Retry.MaxIntervalMS <= 0 {
		c.Retry.MaxIntervalMS = 10000
	}
	if c.Health.ProbeTimeoutSec <= 0 {
		c.Health.ProbeTimeoutSec = 2
	}
	if c.Health.SnapshotMaxAgeSec <= 0 {
		c.Health.SnapshotMaxAgeSec = 30
	}
	if c.Health.IntervalSec <= 0 {
		c.Health.IntervalSec = 30
	}
	return nil
}
