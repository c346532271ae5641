// Package config holds the server's tunables. Settings come from an
// optional yaml file and from the client's initializationOptions, with
// the options winning.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DebounceMillis is how long diagnostics wait for the edit burst
	// to quiet down before publishing.
	DebounceMillis int `yaml:"debounce_ms" json:"debounce_ms"`
	// SettleTimeoutMillis bounds how long a query waits for analysis
	// of the newest version before answering from what it has.
	SettleTimeoutMillis int `yaml:"settle_timeout_ms" json:"settle_timeout_ms"`
	// Workers is the analysis pool size, 0 meaning one per CPU.
	Workers   int    `yaml:"workers" json:"workers"`
	QueueSize int    `yaml:"queue_size" json:"queue_size"`
	LogPath   string `yaml:"log_path" json:"log_path"`
	// Verbosity is the commonlog level passed at startup.
	Verbosity int `yaml:"verbosity" json:"verbosity"`
}

var defaultConfig = Config{
	DebounceMillis:      300,
	SettleTimeoutMillis: 2000,
	QueueSize:           64,
	Verbosity:           1,
}

// Default returns the built-in configuration.
func Default() Config {
	return defaultConfig
}

// LoadFile reads a yaml config file. An empty path or a missing file
// yields the defaults.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg.normalized(), nil
}

// Merge overlays the client's initializationOptions onto cfg. Only
// fields present in v overwrite.
func Merge(cfg Config, v any) (Config, error) {
	if v == nil {
		return cfg.normalized(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal options: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return cfg.normalized(), nil
}

func (c Config) normalized() Config {
	if c.DebounceMillis < 0 {
		c.DebounceMillis = defaultConfig.DebounceMillis
	}
	if c.SettleTimeoutMillis <= 0 {
		c.SettleTimeoutMillis = defaultConfig.SettleTimeoutMillis
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultConfig.QueueSize
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	return c
}

// Debounce returns the diagnostic debounce delay.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// SettleTimeout returns the query settle bound.
func (c Config) SettleTimeout() time.Duration {
	return time.Duration(c.SettleTimeoutMillis) * time.Millisecond
}

// WorkerCount resolves the pool size.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
