package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Host config
	assert.Equal(t, 30*time.Second, cfg.Host.GrantBudget.Std())
	assert.True(t, cfg.Host.DeferredRefresh)
	assert.True(t, cfg.Host.BatteryMonitoring)
	assert.Equal(t, 1.0, cfg.Host.BatteryLevel)

	// Channel config
	assert.Equal(t, 256, cfg.Channels.EventBuffer)
	assert.Equal(t, 100, cfg.Channels.History)

	assert.NoError(t, cfg.Validate())
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "127.0.0.1",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"RATE_LIMIT_RPS":        "500",
		"RATE_LIMIT_BURST":      "1000",
		"RATE_LIMIT_ENABLED":    "false",
		"HOST_GRANT_BUDGET":     "3m",
		"HOST_DEFERRED_REFRESH": "false",
		"HOST_BATTERY_LEVEL":    "0.25",
		"HOST_BATTERY_STATE":    "charging",
		"HOST_LOW_POWER":        "true",
		"CHANNEL_EVENT_BUFFER":  "16",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 3*time.Minute, cfg.Host.GrantBudget.Std())
	assert.False(t, cfg.Host.DeferredRefresh)
	assert.Equal(t, 0.25, cfg.Host.BatteryLevel)
	assert.Equal(t, "charging", cfg.Host.BatteryState)
	assert.True(t, cfg.Host.LowPowerMode)
	assert.Equal(t, 16, cfg.Channels.EventBuffer)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("HOST_GRANT_BUDGET", "soon")

	_, err := Load()
	assert.Error(t, err)

	// LoadOrDefault falls back instead of failing
	cfg := LoadOrDefault()
	assert.Equal(t, 30*time.Second, cfg.Host.GrantBudget.Std())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero grant budget", func(c *Config) { c.Host.GrantBudget = 0 }},
		{"negative task budget", func(c *Config) { c.Host.TaskBudget = Duration(-time.Second) }},
		{"battery above one", func(c *Config) { c.Host.BatteryLevel = 1.5 }},
		{"battery below zero", func(c *Config) { c.Host.BatteryLevel = -0.1 }},
		{"zero event buffer", func(c *Config) { c.Channels.EventBuffer = 0 }},
		{"zero history", func(c *Config) { c.Channels.History = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifecycle.yaml")
	content := `
server:
  port: "7000"
host:
  grant_budget: 45s
  deferred_refresh: false
  battery_level: 0.5
channels:
  history: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(path, cfg))

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 45*time.Second, cfg.Host.GrantBudget.Std())
	assert.False(t, cfg.Host.DeferredRefresh)
	assert.Equal(t, 0.5, cfg.Host.BatteryLevel)
	assert.Equal(t, 10, cfg.Channels.History)
	assert.Equal(t, 256, cfg.Channels.EventBuffer)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifecycle.toml")
	content := `
[logging]
level = "warn"

[host]
task_budget = "10s"
low_power_mode = true

[rate_limit]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Default()
	require.NoError(t, LoadFile(path, cfg))

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Host.TaskBudget.Std())
	assert.True(t, cfg.Host.LowPowerMode)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Host.GrantBudget.Std())
}

func TestLoadUsesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lifecycle.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"6000\"\n"), 0o600))

	t.Setenv("PORT", "9000")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	// File wins over environment
	assert.Equal(t, "6000", cfg.Server.Port)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, LoadFile(filepath.Join(dir, "missing.yaml"), Default()))

	ini := filepath.Join(dir, "lifecycle.ini")
	require.NoError(t, os.WriteFile(ini, []byte("port=1"), 0o600))
	assert.Error(t, LoadFile(ini, Default()))

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[host\n"), 0o600))
	assert.Error(t, LoadFile(broken, Default()))
}
