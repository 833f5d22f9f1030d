package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want default :8080", cfg.Server.ListenAddr)
	}
	if !cfg.Rower.PreferRowerPace {
		t.Error("PreferRowerPace should default to true")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "server:\n  listen_addr: \":9999\"\nble:\n  enabled: false\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(path)
	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want :9999", cfg.Server.ListenAddr)
	}
	if cfg.BLE.Enabled {
		t.Error("BLE.Enabled should be false from file")
	}
	// Untouched sections keep their defaults.
	if cfg.SessionLog.IntervalMs != 1000 {
		t.Errorf("SessionLog.IntervalMs = %d, want default 1000", cfg.SessionLog.IntervalMs)
	}
}

func TestUpdateFromJSONDeepMerge(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.UpdateFromJSON([]byte(`{"pulse":{"enabled":true}}`)); err != nil {
		t.Fatal(err)
	}
	if !cfg.Pulse.Enabled {
		t.Error("patch did not apply Pulse.Enabled")
	}
	if cfg.Pulse.Pin != "GPIO18" {
		t.Errorf("sibling field lost in merge: Pin = %q", cfg.Pulse.Pin)
	}
	if cfg.BLE.DeviceName != "WRowFusion" {
		t.Errorf("unrelated section lost in merge: %q", cfg.BLE.DeviceName)
	}
}

func TestUpdateFromJSONRejectsMalformed(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.UpdateFromJSON([]byte(`{"pulse":`)); err == nil {
		t.Error("expected error for malformed patch")
	}
}
