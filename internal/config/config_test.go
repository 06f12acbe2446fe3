package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresSessionSecret(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("expected an error without SESSION_SECRET")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret-at-least-16-chars!!")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "todohub.db" {
		t.Errorf("DBPath = %q, want todohub.db", cfg.DBPath)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %s, want 24h", cfg.SessionTTL)
	}
	if !cfg.ProtectPeerAdmins {
		t.Error("ProtectPeerAdmins should default to true")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret-at-least-16-chars!!")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("PROTECT_PEER_ADMINS", "false")
	t.Setenv("LOGIN_RATE_PER_MINUTE", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %s, want 1h", cfg.SessionTTL)
	}
	if cfg.ProtectPeerAdmins {
		t.Error("ProtectPeerAdmins should be overridable to false")
	}
	if cfg.LoginRatePerMinute != 30 {
		t.Errorf("LoginRatePerMinute = %d, want 30", cfg.LoginRatePerMinute)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret-at-least-16-chars!!")
	t.Setenv("PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an out-of-range port")
	}
}
