// Package config loads and persists WRowFusion's YAML configuration, with
// .env and environment-variable overrides and a JSON deep-merge PATCH API
// for the websocket/API layer to adjust settings live.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration.
type Config struct {
	mu sync.RWMutex

	S4         S4Config         `yaml:"s4" json:"s4"`
	Rower      RowerConfig      `yaml:"rower" json:"rower"`
	HeartRate  HeartRateConfig  `yaml:"heart_rate" json:"heartRate"`
	Pulse      PulseConfig      `yaml:"pulse" json:"pulse"`
	BLE        BLEConfig        `yaml:"ble" json:"ble"`
	SessionLog SessionLogConfig `yaml:"session_log" json:"sessionLog"`
	Server     ServerConfig     `yaml:"server" json:"server"`

	path string
}

// S4Config controls the serial connection to the WaterRower monitor.
type S4Config struct {
	PortPath string `yaml:"port_path" json:"portPath"` // empty = auto-discover
	Demo     bool   `yaml:"demo" json:"demo"`           // simulate an S4 instead of opening a port
}

// RowerConfig controls aggregation policy.
type RowerConfig struct {
	PreferRowerPace bool `yaml:"prefer_rower_pace" json:"preferRowerPace"`
	// UseConcept2Power derives instantaneous watts from speed via the
	// Concept2 formula instead of the rolling per-stroke average.
	UseConcept2Power bool `yaml:"use_concept2_power" json:"useConcept2Power"`
}

// HeartRateConfig selects the external heart-rate source, if any, used to
// supplement the S4's own chest-strap receiver when it reports no BPM.
type HeartRateConfig struct {
	Source string `yaml:"source" json:"source"` // "none", "ble", "ant", "rower"
}

// PulseConfig controls the optional GPIO pulse-train output.
type PulseConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Pin     string `yaml:"pin" json:"pin"`
}

// BLEConfig controls FTMS/HRS advertising.
type BLEConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	DeviceName string `yaml:"device_name" json:"deviceName"`
}

// SessionLogConfig controls the SQLite session/sample logger.
type SessionLogConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Path       string `yaml:"path" json:"path"`
	IntervalMs int    `yaml:"interval_ms" json:"intervalMs"`
}

// ServerConfig controls the websocket/HTTP telemetry API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		S4: S4Config{
			PortPath: "",
			Demo:     false,
		},
		Rower: RowerConfig{
			PreferRowerPace: true,
		},
		HeartRate: HeartRateConfig{
			Source: "rower",
		},
		Pulse: PulseConfig{
			Enabled: false,
			Pin:     "GPIO18",
		},
		BLE: BLEConfig{
			Enabled:    true,
			DeviceName: "WRowFusion",
		},
		SessionLog: SessionLogConfig{
			Enabled:    true,
			Path:       "/var/lib/wrowfusion/sessions.db",
			IntervalMs: 1000,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if the file is
// absent or malformed.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets process env vars
// that aren't already set.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config
// values. Supported: S4_PORT, S4_DEMO, HEART_RATE_SOURCE, PULSE_ENABLED,
// PULSE_PIN, BLE_ENABLED, BLE_DEVICE_NAME, SESSION_LOG_ENABLED,
// SESSION_LOG_PATH, SESSION_LOG_INTERVAL_MS, LISTEN_ADDR, PREFER_ROWER_PACE,
// USE_CONCEPT2_POWER.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("S4_PORT"); v != "" {
		c.S4.PortPath = v
	}
	if v := os.Getenv("S4_DEMO"); v != "" {
		c.S4.Demo = isTruthy(v)
	}
	if v := os.Getenv("PREFER_ROWER_PACE"); v != "" {
		c.Rower.PreferRowerPace = isTruthy(v)
	}
	if v := os.Getenv("USE_CONCEPT2_POWER"); v != "" {
		c.Rower.UseConcept2Power = isTruthy(v)
	}
	if v := os.Getenv("HEART_RATE_SOURCE"); v != "" {
		c.HeartRate.Source = v
	}
	if v := os.Getenv("PULSE_ENABLED"); v != "" {
		c.Pulse.Enabled = isTruthy(v)
	}
	if v := os.Getenv("PULSE_PIN"); v != "" {
		c.Pulse.Pin = v
	}
	if v := os.Getenv("BLE_ENABLED"); v != "" {
		c.BLE.Enabled = isTruthy(v)
	}
	if v := os.Getenv("BLE_DEVICE_NAME"); v != "" {
		c.BLE.DeviceName = v
	}
	if v := os.Getenv("SESSION_LOG_ENABLED"); v != "" {
		c.SessionLog.Enabled = isTruthy(v)
	}
	if v := os.Getenv("SESSION_LOG_PATH"); v != "" {
		c.SessionLog.Path = v
	}
	if v := os.Getenv("SESSION_LOG_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SessionLog.IntervalMs = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
}

func isTruthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/wrowfusion/config.yaml"
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved.
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
