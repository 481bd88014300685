package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_CONFIG", "")
	t.Setenv("APP_DATA_DIR", "/var/lib/monitee")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "/var/lib/monitee/app.db", cfg.DBPath)
	assert.Equal(t, 15*time.Second, cfg.MonitorInterval)
	assert.Equal(t, time.Minute, cfg.Cache.Motherboard)
	assert.Equal(t, "system", cfg.Formatting.TemperatureUnit)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
monitor_interval: 30s
cache:
  cpu: 2s
notifications:
  server_name: nas
  ntfy:
    enabled: true
    topic: home-alerts
formatting:
  temperature_unit: fahrenheit
`), 0o644))
	t.Setenv("APP_CONFIG", path)
	t.Setenv("APP_ADDR", ":7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr, "env wins over file")
	assert.Equal(t, 30*time.Second, cfg.MonitorInterval)
	assert.Equal(t, 2*time.Second, cfg.Cache.CPU)
	assert.Equal(t, 5*time.Second, cfg.Cache.Disk, "unset keys keep defaults")
	assert.Equal(t, "nas", cfg.Notifications.ServerName)
	assert.True(t, cfg.Notifications.Ntfy.Enabled)
	assert.Equal(t, "https://ntfy.sh", cfg.Notifications.Ntfy.URL)
	assert.Equal(t, "fahrenheit", cfg.Formatting.TemperatureUnit)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("formatting:\n  temperature_unit: kelvin\n"), 0o644))
	t.Setenv("APP_CONFIG", path)

	_, err := Load()
	assert.ErrorContains(t, err, "temperature_unit")
}

func TestLoadNormalizesCase(t *testing.T) {
	t.Setenv("APP_CONFIG", "")
	t.Setenv("APP_TEMPERATURE_UNIT", "Fahrenheit")
	t.Setenv("APP_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fahrenheit", cfg.Formatting.TemperatureUnit)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	t.Setenv("APP_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestGetenvBool(t *testing.T) {
	t.Setenv("X_FLAG", "off")
	assert.False(t, getenvBool("X_FLAG", true))
	t.Setenv("X_FLAG", "maybe")
	assert.True(t, getenvBool("X_FLAG", true))
}
