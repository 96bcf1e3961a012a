package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("POWERAUTH_DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without POWERAUTH_DATABASE_URL")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POWERAUTH_DATABASE_URL", "postgres://localhost/powerauth")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %s, want :8080", cfg.HTTPAddr)
	}
	if cfg.ActivationIDIterations != 10 {
		t.Errorf("ActivationIDIterations = %d, want 10", cfg.ActivationIDIterations)
	}
	if cfg.ActivationValidity != 2*time.Minute {
		t.Errorf("ActivationValidity = %v, want 2m", cfg.ActivationValidity)
	}
	if cfg.SignatureMaxFailedAttempts != 5 {
		t.Errorf("SignatureMaxFailedAttempts = %d, want 5", cfg.SignatureMaxFailedAttempts)
	}
	if cfg.SignatureValidationLookahead != 20 {
		t.Errorf("SignatureValidationLookahead = %d, want 20", cfg.SignatureValidationLookahead)
	}
	if cfg.TokenTimestampValidity != 2*time.Hour {
		t.Errorf("TokenTimestampValidity = %v, want 2h", cfg.TokenTimestampValidity)
	}
	if cfg.LockTimeout != 10*time.Second {
		t.Errorf("LockTimeout = %v, want 10s", cfg.LockTimeout)
	}
	if cfg.RestrictAccess {
		t.Error("RestrictAccess must default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POWERAUTH_DATABASE_URL", "postgres://localhost/powerauth")
	t.Setenv("POWERAUTH_SIGNATURE_VALIDATION_LOOKAHEAD", "7")
	t.Setenv("POWERAUTH_ACTIVATION_VALIDITY", "5m")
	t.Setenv("POWERAUTH_RESTRICT_ACCESS", "true")
	t.Setenv("POWERAUTH_MASTER_DB_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SignatureValidationLookahead != 7 {
		t.Errorf("lookahead = %d, want 7", cfg.SignatureValidationLookahead)
	}
	if cfg.ActivationValidity != 5*time.Minute {
		t.Errorf("validity = %v, want 5m", cfg.ActivationValidity)
	}
	if !cfg.RestrictAccess {
		t.Error("RestrictAccess must be on")
	}
	if cfg.MasterDBEncryptionKey == "" {
		t.Error("master key must be loaded")
	}
}

func TestGetEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("POWERAUTH_DATABASE_URL", "postgres://localhost/powerauth")
	t.Setenv("POWERAUTH_ACTIVATION_ID_ITERATIONS", "not-a-number")
	t.Setenv("POWERAUTH_LOCK_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ActivationIDIterations != 10 {
		t.Errorf("iterations = %d, want fallback 10", cfg.ActivationIDIterations)
	}
	if cfg.LockTimeout != 10*time.Second {
		t.Errorf("lock timeout = %v, want fallback 10s", cfg.LockTimeout)
	}
}
