package config

import (
	"net/http/httptest"
	"testing"
	"time"
)

const validKey = "this_is_a_valid_long_session_encrypt_key_123456"

func TestLoadRejectsDefaultSessionKey(t *testing.T) {
	t.Setenv("SESSION_ENCRYPT_KEY", "CHANGE_ME_PRODUCTION_SESSION_KEY")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail with default session key")
	}
}

func TestLoadPasswordBounds(t *testing.T) {
	t.Setenv("SESSION_ENCRYPT_KEY", validKey)
	t.Setenv("PASSWORD_MIN_LENGTH", "16")
	t.Setenv("PASSWORD_MAX_LENGTH", "12")
	_, err := Load()
	if err == nil {
		t.Fatalf("expected Load to fail for invalid password bounds")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("SESSION_ENCRYPT_KEY", validKey)
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail for unsupported DB_DRIVER")
	}
}

func TestLoadRequiresDSNForNetworkDrivers(t *testing.T) {
	t.Setenv("SESSION_ENCRYPT_KEY", validKey)
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DB_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail without DB_DSN")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_ENCRYPT_KEY", validKey)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LockoutThreshold != 4 {
		t.Fatalf("expected lockout threshold 4, got %d", cfg.LockoutThreshold)
	}
	if cfg.LockoutDuration() != 30*time.Minute {
		t.Fatalf("expected 30m lockout, got %s", cfg.LockoutDuration())
	}
	if cfg.SessionTTL() != time.Hour {
		t.Fatalf("expected 1h session ttl, got %s", cfg.SessionTTL())
	}
	if cfg.RememberTTL() != 30*24*time.Hour {
		t.Fatalf("expected 30d remember ttl, got %s", cfg.RememberTTL())
	}
	if !cfg.TrustProxy {
		t.Fatalf("expected proxy headers to be trusted by default")
	}
}

func TestLoadRejectsUnknownNotifySender(t *testing.T) {
	t.Setenv("SESSION_ENCRYPT_KEY", validKey)
	t.Setenv("NOTIFY_SENDER", "pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail for unsupported NOTIFY_SENDER")
	}
}

func TestResolveCookieSecure(t *testing.T) {
	cfg := Config{TrustProxy: true}

	req := httptest.NewRequest("GET", "http://example.test", nil)
	if got := cfg.ResolveCookieSecure(req); got {
		t.Fatalf("expected http request to resolve secure=false")
	}

	req.Header.Set("X-Forwarded-Proto", "https")
	if got := cfg.ResolveCookieSecure(req); !got {
		t.Fatalf("expected proxied https request to resolve secure=true")
	}

	cfg.TrustProxy = false
	if got := cfg.ResolveCookieSecure(req); got {
		t.Fatalf("expected forwarded proto to be ignored without TRUST_PROXY")
	}

	tlsReq := httptest.NewRequest("GET", "https://example.test", nil)
	if got := cfg.ResolveCookieSecure(tlsReq); !got {
		t.Fatalf("expected tls request to resolve secure=true")
	}
}

func TestLoadShutdownTimeout(t *testing.T) {
	t.Setenv("SESSION_ENCRYPT_KEY", validKey)
	t.Setenv("SHUTDOWN_TIMEOUT", "45s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ShutdownTimeout != 45*time.Second {
		t.Fatalf("expected 45s, got %s", cfg.ShutdownTimeout)
	}

	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("expected fallback to 15s, got %s", cfg.ShutdownTimeout)
	}
}
