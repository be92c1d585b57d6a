package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.Server.Port)
	}
	if cfg.Cache.TTLDuration() != time.Hour {
		t.Errorf("expected 1h TTL, got %s", cfg.Cache.TTLDuration())
	}
	if len(cfg.Server.CORSOrigins) != 3 {
		t.Errorf("expected 3 default CORS origins, got %d", len(cfg.Server.CORSOrigins))
	}
	if cfg.Clerk.APIBase != "https://api.clerk.com/v1" {
		t.Errorf("unexpected Clerk API base %s", cfg.Clerk.APIBase)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("CLERK_SECRET_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv("CACHE_TTL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Clerk.SecretKey = "sk_test_abc"
	cfg.Cache.SQLitePath = ""

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Port != 9000 {
		t.Errorf("expected Port=9000, got %d", loaded.Server.Port)
	}
	if loaded.Clerk.SecretKey != "sk_test_abc" {
		t.Errorf("secret key did not round-trip: %q", loaded.Clerk.SecretKey)
	}
	if loaded.Cache.SQLitePath != "" {
		t.Errorf("expected empty sqlite path, got %q", loaded.Cache.SQLitePath)
	}
}

func TestConfig_LoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CLERK_SECRET_KEY", "")
	t.Setenv("PORT", "")
	t.Setenv("CACHE_TTL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CLERK_SECRET_KEY", "sk_live_env")
	t.Setenv("PORT", "8081")
	t.Setenv("CACHE_TTL", "3600")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Clerk.SecretKey != "sk_live_env" {
		t.Errorf("env secret key not applied: %q", cfg.Clerk.SecretKey)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("env port not applied: %d", cfg.Server.Port)
	}
	if cfg.Cache.TTLDuration() != time.Hour {
		t.Errorf("bare-seconds TTL not applied: %s", cfg.Cache.TTLDuration())
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://staging.example.com" {
		t.Errorf("CORS origins not applied: %v", cfg.Server.CORSOrigins)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without clerk secret key")
	}

	cfg.Clerk.InsecureSkipVerify = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("skip-verify config should validate: %v", err)
	}

	cfg.Clerk.InsecureSkipVerify = false
	cfg.Clerk.SecretKey = "sk_test"
	cfg.Server.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid port")
	}
}
