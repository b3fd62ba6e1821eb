// Package config loads the gateway configuration from the environment.
//
// The configuration surface is read once at startup and treated as read-only
// for the process lifetime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config collects every tunable the gateway recognizes.
type Config struct {
	Addr string // listen address
	DSN  string // PostgreSQL DSN; empty selects in-memory stores

	SessionSecret   []byte        // HS256 signing key
	SessionTTL      time.Duration // session token lifetime
	BaselineVersion int64         // global session baseline; bump to invalidate all tokens

	CSRFTTL time.Duration // CSRF cookie lifetime

	RateMaxAttempts int           // attempts allowed per window per client key
	RateWindow      time.Duration // rate-limit window length

	ACLPath string // path to the JSON rule file; empty means no rules

	// GuardedPrefixes are the path trees the gateway state machine covers;
	// requests outside them bypass the gateway entirely.
	GuardedPrefixes []string

	Production  bool // gates ACL diagnostics and user-store writes
	AllowWrites bool // user-store mutations permitted
}

// Defaults applied when the corresponding variable is unset.
const (
	DefaultAddr       = ":8080"
	DefaultSessionTTL = 2 * time.Hour
	DefaultCSRFTTL    = 10 * time.Minute
	DefaultRateMax    = 5
	DefaultRateWindow = time.Minute
)

// devSecret is only ever used outside production.
const devSecret = "dev-secret"

// Load reads the environment. A production deployment without SESSION_SECRET
// is a fatal misconfiguration and fails here, at startup, not at first request.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:            envOr("ADDR", DefaultAddr),
		DSN:             os.Getenv("DATABASE_DSN"),
		SessionTTL:      DefaultSessionTTL,
		BaselineVersion: 1,
		CSRFTTL:         DefaultCSRFTTL,
		RateMaxAttempts: DefaultRateMax,
		RateWindow:      DefaultRateWindow,
		ACLPath:         os.Getenv("ACL_PATH"),
		GuardedPrefixes: splitList(envOr("GUARDED_PREFIXES", "/protected,/admin,/account,/docs")),
		Production:      os.Getenv("APP_ENV") == "production",
	}
	cfg.AllowWrites = !cfg.Production

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		if cfg.Production {
			return nil, errors.New("SESSION_SECRET is required in production")
		}
		secret = devSecret
	}
	cfg.SessionSecret = []byte(secret)

	var err error
	if cfg.SessionTTL, err = durOr("SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.CSRFTTL, err = durOr("CSRF_TTL", cfg.CSRFTTL); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = durOr("RATE_WINDOW", cfg.RateWindow); err != nil {
		return nil, err
	}
	if cfg.RateMaxAttempts, err = intOr("RATE_MAX_ATTEMPTS", cfg.RateMaxAttempts); err != nil {
		return nil, err
	}
	v, err := intOr("SESSION_VERSION", int(cfg.BaselineVersion))
	if err != nil {
		return nil, err
	}
	cfg.BaselineVersion = int64(v)

	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
