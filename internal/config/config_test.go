package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IdlePoll() != 10*time.Millisecond {
		t.Errorf("IdlePoll() = %v, want 10ms", cfg.IdlePoll())
	}
	if cfg.StatsInterval() != time.Minute {
		t.Errorf("StatsInterval() = %v, want 1m", cfg.StatsInterval())
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want disabled", cfg.MetricsAddr)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	body := strings.Join([]string{
		"log_level: debug",
		"log_format: json",
		"idle_poll_ms: 5",
		"metrics_addr: 127.0.0.1:9464",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.IdlePollMs != 5 {
		t.Errorf("IdlePollMs = %d, want 5", cfg.IdlePollMs)
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.StatsIntervalSeconds != 60 {
		t.Errorf("unset key should keep default, got %d", cfg.StatsIntervalSeconds)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	if err := os.WriteFile(path, []byte("idle_poll_ms: 5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CABLEROUTER_IDLE_POLL_MS", "25")
	t.Setenv("CABLEROUTER_METRICS_ADDR", ":9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IdlePollMs != 25 {
		t.Errorf("IdlePollMs = %d, want env value 25", cfg.IdlePollMs)
	}
	if cfg.MetricsAddr != ":9000" {
		t.Errorf("MetricsAddr = %q, want :9000", cfg.MetricsAddr)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
