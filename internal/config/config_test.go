package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != "8080" || cfg.GRPCPort != "9090" {
		t.Errorf("unexpected ports %s/%s", cfg.HTTPPort, cfg.GRPCPort)
	}
	if cfg.OpsSubject != "mimind.safety.ops_alert" {
		t.Errorf("unexpected ops subject %s", cfg.OpsSubject)
	}
	if cfg.RedHold != 10*time.Minute {
		t.Errorf("expected red_hold 10m, got %s", cfg.RedHold)
	}
	if cfg.Auth.CacheTTL != 30*time.Second {
		t.Errorf("expected cache_ttl 30s, got %s", cfg.Auth.CacheTTL)
	}
	if cfg.LegalPolicyEnabled {
		t.Error("legal policy must default to disabled")
	}
	if cfg.DefaultLocale != "en-US" {
		t.Errorf("expected en-US, got %s", cfg.DefaultLocale)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("MIMIND_HTTP_PORT", "9999")
	t.Setenv("MIMIND_LEGAL_POLICY_ENABLED", "true")
	t.Setenv("MIMIND_RED_HOLD", "90s")
	t.Setenv("MIMIND_AUTH_API_KEY_HASH", "$2a$10$abc")
	t.Setenv("MIMIND_MESSAGES_CRISIS_STOP", "custom stop copy")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != "9999" {
		t.Errorf("expected 9999, got %s", cfg.HTTPPort)
	}
	if !cfg.LegalPolicyEnabled {
		t.Error("expected legal policy enabled")
	}
	if cfg.RedHold != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.RedHold)
	}
	if cfg.Auth.APIKeyHash != "$2a$10$abc" {
		t.Errorf("unexpected hash %q", cfg.Auth.APIKeyHash)
	}
	if cfg.Messages.CrisisStop != "custom stop copy" {
		t.Errorf("unexpected crisis copy %q", cfg.Messages.CrisisStop)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mimind.yaml")
	data := []byte(`
grpc_port: "7070"
default_locale: en-GB
auth:
  cache_ttl: 1m
messages:
  monitor: keep going
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	v := New()
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GRPCPort != "7070" || cfg.DefaultLocale != "en-GB" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Auth.CacheTTL != time.Minute {
		t.Errorf("expected 1m, got %s", cfg.Auth.CacheTTL)
	}
	if cfg.Messages.Monitor != "keep going" {
		t.Errorf("unexpected monitor copy %q", cfg.Messages.Monitor)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"negative red hold", "MIMIND_RED_HOLD", "-1m"},
		{"negative cache ttl", "MIMIND_AUTH_CACHE_TTL", "-5s"},
		{"non-numeric port", "MIMIND_HTTP_PORT", "http"},
		{"unknown log level", "MIMIND_LOG_LEVEL", "verbose"},
		{"bad nats url", "MIMIND_NATS_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(New()); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestReadFile_Missing(t *testing.T) {
	if err := ReadFile(New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
