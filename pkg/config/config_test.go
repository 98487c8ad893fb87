package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	if cfg.Simulation.Policy != "FCFS" {
		t.Fatalf("expected default policy FCFS, got %q", cfg.Simulation.Policy)
	}
	if cfg.Simulation.MaxTicks != 100 {
		t.Fatalf("expected default max ticks 100, got %d", cfg.Simulation.MaxTicks)
	}
	if cfg.Trace.TickTracePath == "" || cfg.Trace.BouncerTracePath == "" {
		t.Fatalf("expected non-empty default trace paths, got %#v", cfg.Trace)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := []byte("simulation:\n  policy: RevenueBased\n  max_ticks: 50\nmetrics:\n  enabled: true\n  addr: :9999\n")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Simulation.Policy != "RevenueBased" {
		t.Fatalf("expected overridden policy, got %q", cfg.Simulation.Policy)
	}
	if cfg.Simulation.MaxTicks != 50 {
		t.Fatalf("expected overridden max ticks, got %d", cfg.Simulation.MaxTicks)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9999" {
		t.Fatalf("expected overridden metrics config, got %#v", cfg.Metrics)
	}
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if cfg.Simulation.Policy != "FCFS" {
		t.Fatalf("expected defaults preserved, got %#v", cfg.Simulation)
	}
}
