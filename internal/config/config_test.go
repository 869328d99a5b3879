package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Poll.TickSeconds != 1 {
		t.Errorf("tick = %d, want 1", cfg.Poll.TickSeconds)
	}
	if cfg.Gateway.SendBufferSize != 256 {
		t.Errorf("send buffer = %d, want 256", cfg.Gateway.SendBufferSize)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %s, want info", cfg.Log.Level)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9090"
  cors_allowed_origins: "http://localhost:3000"
poll:
  tick_seconds: 2
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %s, want 9090", cfg.Server.Port)
	}
	if cfg.Server.CORSAllowedOrigins != "http://localhost:3000" {
		t.Errorf("origins = %s", cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Poll.TickSeconds != 2 {
		t.Errorf("tick = %d, want 2", cfg.Poll.TickSeconds)
	}
	// Untouched sections keep their defaults.
	if cfg.Gateway.ReadTimeoutSec != 60 {
		t.Errorf("read timeout = %d, want 60", cfg.Gateway.ReadTimeoutSec)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %s, want env override 7070", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %s, want warn", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
