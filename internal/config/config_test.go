package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("SELCOACH_TEST_KEY", "sk-live")
	path := writeConfig(t, `{
		"server": {"port": ${SELCOACH_TEST_PORT:8080}, "log_level": "info"},
		"providers": [
			{"id": "anthropic", "type": "anthropic", "api_key": "${SELCOACH_TEST_KEY}", "model": "claude-sonnet-4-5-20250929", "default": true}
		],
		"limits": {"per_minute": 50, "per_hour": 1000},
		"auth": {"admins": ["slack:U1"]}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Providers[0].APIKey != "sk-live" {
		t.Fatalf("api_key = %q", cfg.Providers[0].APIKey)
	}
	if !cfg.Providers[0].Default {
		t.Fatal("default flag lost")
	}
	if cfg.Limits.PerMinute != 50 || cfg.Limits.PerHour != 1000 {
		t.Fatalf("limits = %+v", cfg.Limits)
	}
	if len(cfg.Auth.Admins) != 1 || cfg.Auth.Admins[0] != "slack:U1" {
		t.Fatalf("admins = %v", cfg.Auth.Admins)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("SELCOACH_TEST_PORT", "9999")
	path := writeConfig(t, `{"server": {"port": ${SELCOACH_TEST_PORT:8080}}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("port = %d, want 9999", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}
