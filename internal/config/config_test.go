package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"MASTER_SECRET": "x",
		"PORT":          "1234",
		"STATE_FILE":    "/tmp/state.json",
		"LOG_LEVEL":     "debug",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
	if cfg.StateFile != "/tmp/state.json" {
		t.Fatalf("expected state file override, got %q", cfg.StateFile)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %q", cfg.LogLevel)
	}
}

func TestLoadConfigFromEnv_InvalidPort(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "PORT": "nope"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadAgentConfigFromEnv(t *testing.T) {
	cfg, err := LoadAgentConfigFromEnv(mapEnv{
		"AGENT_URL":   "http://localhost:3000/api/v1",
		"AGENT_TOKEN": "sw_abc",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Interval != 500*time.Millisecond {
		t.Fatalf("expected default interval 500ms, got %v", cfg.Interval)
	}

	cfg, err = LoadAgentConfigFromEnv(mapEnv{
		"AGENT_URL":         "http://localhost:3000/api/v1",
		"AGENT_TOKEN":       "sw_abc",
		"AGENT_INTERVAL_MS": "2000",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Interval != 2*time.Second {
		t.Fatalf("expected interval 2s, got %v", cfg.Interval)
	}
}

func TestLoadAgentConfigFromEnv_MissingToken(t *testing.T) {
	_, err := LoadAgentConfigFromEnv(mapEnv{"AGENT_URL": "http://x"})
	if err == nil {
		t.Fatalf("expected error")
	}
}
