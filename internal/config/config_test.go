package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "DATABASE_DSN", "SESSION_SECRET", "SESSION_TTL",
		"SESSION_VERSION", "CSRF_TTL", "RATE_MAX_ATTEMPTS", "RATE_WINDOW",
		"ACL_PATH", "GUARDED_PREFIXES", "APP_ENV"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.SessionTTL != DefaultSessionTTL || cfg.CSRFTTL != DefaultCSRFTTL {
		t.Errorf("TTLs = %v, %v", cfg.SessionTTL, cfg.CSRFTTL)
	}
	if cfg.BaselineVersion != 1 {
		t.Errorf("BaselineVersion = %d", cfg.BaselineVersion)
	}
	if cfg.RateMaxAttempts != DefaultRateMax || cfg.RateWindow != DefaultRateWindow {
		t.Errorf("rate limits = %d, %v", cfg.RateMaxAttempts, cfg.RateWindow)
	}
	if cfg.Production || !cfg.AllowWrites {
		t.Errorf("mode flags: production=%v allowWrites=%v", cfg.Production, cfg.AllowWrites)
	}
	if len(cfg.GuardedPrefixes) == 0 {
		t.Error("no default guarded prefixes")
	}
	// dev fallback secret only outside production
	if len(cfg.SessionSecret) == 0 {
		t.Error("empty secret in development")
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("production without SESSION_SECRET accepted")
	}

	t.Setenv("SESSION_SECRET", "real-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Production || cfg.AllowWrites {
		t.Errorf("mode flags: production=%v allowWrites=%v", cfg.Production, cfg.AllowWrites)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SESSION_VERSION", "7")
	t.Setenv("RATE_MAX_ATTEMPTS", "10")
	t.Setenv("RATE_WINDOW", "5m")
	t.Setenv("GUARDED_PREFIXES", "/x, /y")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.BaselineVersion != 7 {
		t.Errorf("BaselineVersion = %d", cfg.BaselineVersion)
	}
	if cfg.RateMaxAttempts != 10 || cfg.RateWindow != 5*time.Minute {
		t.Errorf("rate limits = %d, %v", cfg.RateMaxAttempts, cfg.RateWindow)
	}
	if len(cfg.GuardedPrefixes) != 2 || cfg.GuardedPrefixes[0] != "/x" || cfg.GuardedPrefixes[1] != "/y" {
		t.Errorf("GuardedPrefixes = %v", cfg.GuardedPrefixes)
	}
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("bad SESSION_TTL accepted")
	}
	t.Setenv("SESSION_TTL", "")
	t.Setenv("RATE_MAX_ATTEMPTS", "many")
	if _, err := Load(); err == nil {
		t.Fatal("bad RATE_MAX_ATTEMPTS accepted")
	}
}
