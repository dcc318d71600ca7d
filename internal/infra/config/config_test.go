package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Reset.Store != ResetStoreMemory {
		t.Errorf("Reset.Store = %q, want %q", cfg.Reset.Store, ResetStoreMemory)
	}
	if cfg.Reset.CacheCapacity != 1000 {
		t.Errorf("Reset.CacheCapacity = %d, want 1000", cfg.Reset.CacheCapacity)
	}
	if cfg.Lockout.Threshold != 5 {
		t.Errorf("Lockout.Threshold = %d, want 5", cfg.Lockout.Threshold)
	}
	if cfg.Lockout.Duration != 15*time.Minute {
		t.Errorf("Lockout.Duration = %v, want 15m", cfg.Lockout.Duration)
	}
	if cfg.JWT.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want the 15m development default", cfg.JWT.AccessTokenTTL)
	}
	if cfg.JWT.RefreshTokenTTL != 720*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want 720h", cfg.JWT.RefreshTokenTTL)
	}
}

func TestLoadProductionAccessTTL(t *testing.T) {
	t.Setenv("AUTHCORE_APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.JWT.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want the 5m production default", cfg.JWT.AccessTokenTTL)
	}
}

func TestLoadResetStoreOverride(t *testing.T) {
	t.Setenv("AUTHCORE_RESET_STORE", "postgres")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Reset.Store != ResetStorePostgres {
		t.Errorf("Reset.Store = %q, want %q", cfg.Reset.Store, ResetStorePostgres)
	}
}

func TestLoadExplicitTTLWinsOverProfile(t *testing.T) {
	t.Setenv("AUTHCORE_APP_ENV", "production")
	t.Setenv("AUTHCORE_JWT_ACCESS_TOKEN_TTL", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.JWT.AccessTokenTTL != 2*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want the explicit 2m", cfg.JWT.AccessTokenTTL)
	}
}
