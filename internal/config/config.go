// Package config loads fieldcheck's settings.
//
// A YAML file is decoded, environment overrides (FIELDCHECK_*) are applied on
// top, and the result is unified with an embedded CUE schema that supplies
// defaults and rejects unknown keys or out-of-range values.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the resolved configuration.
type Config struct {
	DatabasePath string       `json:"database_path"`
	Remote       Remote       `json:"remote"`
	Connectivity Connectivity `json:"connectivity"`
	Sync         Sync         `json:"sync"`
	Log          Log          `json:"log"`
}

// Remote configures the remote asset service client.
type Remote struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout"`
	Token   string `json:"token"`
}

// TimeoutDuration returns Timeout parsed. Load has already validated it.
func (r Remote) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Connectivity configures the connectivity monitor.
type Connectivity struct {
	OnFetchError string `json:"on_fetch_error"`
	MQTT         MQTT   `json:"mqtt"`
}

// MQTT configures the broker used as the reachability probe. An empty
// Broker disables it.
type MQTT struct {
	Broker         string `json:"broker"`
	ClientID       string `json:"client_id"`
	ConnectTimeout string `json:"connect_timeout"`
}

// ConnectTimeoutDuration bounds how long startup waits for the broker.
func (m MQTT) ConnectTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(m.ConnectTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Sync configures automatic drains.
type Sync struct {
	DrainOnReconnect bool   `json:"drain_on_reconnect"`
	Schedule         string `json:"schedule"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// envOverride maps one environment variable onto a config path.
type envOverride struct {
	name string
	path []string
	kind string // "string" or "bool"
}

var envOverrides = []envOverride{
	{"FIELDCHECK_DATABASE_PATH", []string{"database_path"}, "string"},
	{"FIELDCHECK_REMOTE_BASE_URL", []string{"remote", "base_url"}, "string"},
	{"FIELDCHECK_REMOTE_TIMEOUT", []string{"remote", "timeout"}, "string"},
	{"FIELDCHECK_REMOTE_TOKEN", []string{"remote", "token"}, "string"},
	{"FIELDCHECK_ON_FETCH_ERROR", []string{"connectivity", "on_fetch_error"}, "string"},
	{"FIELDCHECK_MQTT_BROKER", []string{"connectivity", "mqtt", "broker"}, "string"},
	{"FIELDCHECK_MQTT_CLIENT_ID", []string{"connectivity", "mqtt", "client_id"}, "string"},
	{"FIELDCHECK_MQTT_CONNECT_TIMEOUT", []string{"connectivity", "mqtt", "connect_timeout"}, "string"},
	{"FIELDCHECK_DRAIN_ON_RECONNECT", []string{"sync", "drain_on_reconnect"}, "bool"},
	{"FIELDCHECK_SYNC_SCHEDULE", []string{"sync", "schedule"}, "string"},
	{"FIELDCHECK_LOG_LEVEL", []string{"log", "level"}, "string"},
	{"FIELDCHECK_LOG_FORMAT", []string{"log", "format"}, "string"},
}

// Default returns the configuration used when no file or environment
// overrides are given.
func Default() Config {
	cfg, err := build(map[string]any{})
	if err != nil {
		panic(fmt.Sprintf("embedded config schema: %v", err))
	}
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	raw := map[string]any{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	if err := applyEnv(raw, os.LookupEnv); err != nil {
		return Config{}, err
	}

	cfg, err := build(raw)
	if err != nil {
		if path != "" {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyEnv(raw map[string]any, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok || v == "" {
			continue
		}

		var value any = v
		if o.kind == "bool" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", o.name, err)
			}
			value = b
		}

		if err := setPath(raw, o.path, value); err != nil {
			return fmt.Errorf("apply %s: %w", o.name, err)
		}
	}
	return nil
}

func setPath(m map[string]any, path []string, value any) error {
	for _, key := range path[:len(path)-1] {
		next, ok := m[key]
		if !ok || next == nil {
			child := map[string]any{}
			m[key] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is not a mapping", key)
		}
		m = child
	}
	m[path[len(path)-1]] = value
	return nil
}

// build unifies raw with the schema and decodes the result.
func build(raw map[string]any) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, err
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, err
	}

	if _, err := time.ParseDuration(cfg.Remote.Timeout); err != nil {
		return Config{}, fmt.Errorf("remote.timeout: %w", err)
	}
	if cfg.Remote.TimeoutDuration() <= 0 {
		return Config{}, errors.New("remote.timeout: must be positive")
	}
	return cfg, nil
}
