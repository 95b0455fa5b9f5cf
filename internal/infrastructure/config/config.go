package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Host      HostConfig      `yaml:"host" toml:"host"`
	Channels  ChannelConfig   `yaml:"channels" toml:"channels"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// HostConfig configures the simulated host OS.
type HostConfig struct {
	GrantBudget       Duration `envconfig:"HOST_GRANT_BUDGET" default:"30s" yaml:"grant_budget" toml:"grant_budget"`
	TaskBudget        Duration `envconfig:"HOST_TASK_BUDGET" default:"30s" yaml:"task_budget" toml:"task_budget"`
	DeferredRefresh   bool     `envconfig:"HOST_DEFERRED_REFRESH" default:"true" yaml:"deferred_refresh" toml:"deferred_refresh"`
	BatteryMonitoring bool     `envconfig:"HOST_BATTERY_MONITORING" default:"true" yaml:"battery_monitoring" toml:"battery_monitoring"`
	BatteryLevel      float64  `envconfig:"HOST_BATTERY_LEVEL" default:"1.0" yaml:"battery_level" toml:"battery_level"`
	BatteryState      string   `envconfig:"HOST_BATTERY_STATE" default:"unplugged" yaml:"battery_state" toml:"battery_state"`
	LowPowerMode      bool     `envconfig:"HOST_LOW_POWER" default:"false" yaml:"low_power_mode" toml:"low_power_mode"`
}

// ChannelConfig holds push channel configuration.
type ChannelConfig struct {
	EventBuffer int `envconfig:"CHANNEL_EVENT_BUFFER" default:"256" yaml:"event_buffer" toml:"event_buffer"`
	History     int `envconfig:"CHANNEL_HISTORY" default:"100" yaml:"history" toml:"history"`
}

// Duration is a time.Duration that decodes from strings like "30s" in
// environment variables, YAML and TOML alike.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load loads configuration from environment variables, then overlays the
// file named by CONFIG_FILE when set. File values win over the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile decodes a YAML or TOML file onto cfg, chosen by extension.
// Keys missing from the file leave cfg untouched.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse TOML config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Host.GrantBudget <= 0 {
		return fmt.Errorf("host grant budget must be positive, got %s", c.Host.GrantBudget.Std())
	}
	if c.Host.TaskBudget <= 0 {
		return fmt.Errorf("host task budget must be positive, got %s", c.Host.TaskBudget.Std())
	}
	if c.Host.BatteryLevel < 0 || c.Host.BatteryLevel > 1 {
		return fmt.Errorf("host battery level must be within [0, 1], got %v", c.Host.BatteryLevel)
	}
	if c.Channels.EventBuffer <= 0 {
		return fmt.Errorf("channel event buffer must be positive, got %d", c.Channels.EventBuffer)
	}
	if c.Channels.History <= 0 {
		return fmt.Errorf("channel history must be positive, got %d", c.Channels.History)
	}
	return nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Host: HostConfig{
			GrantBudget:       Duration(30 * time.Second),
			TaskBudget:        Duration(30 * time.Second),
			DeferredRefresh:   true,
			BatteryMonitoring: true,
			BatteryLevel:      1.0,
			BatteryState:      "unplugged",
			LowPowerMode:      false,
		},
		Channels: ChannelConfig{
			EventBuffer: 256,
			History:     100,
		},
	}
}
