package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "fieldcheck.db", cfg.DatabasePath)
	assert.Equal(t, "", cfg.Remote.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Remote.TimeoutDuration())
	assert.Equal(t, "assume_online", cfg.Connectivity.OnFetchError)
	assert.Equal(t, "fieldcheck", cfg.Connectivity.MQTT.ClientID)
	assert.Equal(t, 2*time.Second, cfg.Connectivity.MQTT.ConnectTimeoutDuration())
	assert.True(t, cfg.Sync.DrainOnReconnect)
	assert.Equal(t, "", cfg.Sync.Schedule)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database_path: /var/lib/fieldcheck/state.db
remote:
  base_url: https://assets.example.org/api
  timeout: 3s
connectivity:
  on_fetch_error: assume_offline
  mqtt:
    broker: tcp://broker.local:1883
    connect_timeout: 500ms
sync:
  drain_on_reconnect: false
  schedule: "@every 15m"
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/fieldcheck/state.db", cfg.DatabasePath)
	assert.Equal(t, "https://assets.example.org/api", cfg.Remote.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Remote.TimeoutDuration())
	assert.Equal(t, "assume_offline", cfg.Connectivity.OnFetchError)
	assert.Equal(t, "tcp://broker.local:1883", cfg.Connectivity.MQTT.Broker)
	assert.Equal(t, "fieldcheck", cfg.Connectivity.MQTT.ClientID, "default kept")
	assert.Equal(t, 500*time.Millisecond, cfg.Connectivity.MQTT.ConnectTimeoutDuration())
	assert.False(t, cfg.Sync.DrainOnReconnect)
	assert.Equal(t, "@every 15m", cfg.Sync.Schedule)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "colour: blue\n"},
		{"unknown nested key", "remote:\n  retries: 3\n"},
		{"bad policy", "connectivity:\n  on_fetch_error: guess\n"},
		{"bad log level", "log:\n  level: chatty\n"},
		{"bad timeout", "remote:\n  timeout: soon\n"},
		{"zero timeout", "remote:\n  timeout: 0s\n"},
		{"empty database path", "database_path: \"\"\n"},
		{"wrong type", "sync:\n  drain_on_reconnect: sometimes\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "remote: [unterminated\n"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "remote:\n  base_url: https://file.example\nlog:\n  level: warn\n")

	t.Setenv("FIELDCHECK_REMOTE_BASE_URL", "https://env.example")
	t.Setenv("FIELDCHECK_DRAIN_ON_RECONNECT", "false")
	t.Setenv("FIELDCHECK_MQTT_BROKER", "tcp://env:1883")
	t.Setenv("FIELDCHECK_DATABASE_PATH", "env.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example", cfg.Remote.BaseURL)
	assert.False(t, cfg.Sync.DrainOnReconnect)
	assert.Equal(t, "tcp://env:1883", cfg.Connectivity.MQTT.Broker)
	assert.Equal(t, "env.db", cfg.DatabasePath)
	assert.Equal(t, "warn", cfg.Log.Level, "file value kept")
}

func TestLoad_EnvValidated(t *testing.T) {
	t.Setenv("FIELDCHECK_DRAIN_ON_RECONNECT", "maybe")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("FIELDCHECK_DRAIN_ON_RECONNECT", "")
	t.Setenv("FIELDCHECK_LOG_FORMAT", "xml")
	_, err = Load("")
	assert.Error(t, err)
}

func TestSetPath_NotAMapping(t *testing.T) {
	raw := map[string]any{"remote": "flat"}
	assert.Error(t, setPath(raw, []string{"remote", "token"}, "x"))
}
