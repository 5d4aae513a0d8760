package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bizportal/internal/i18n"
	"bizportal/internal/rate"
	"bizportal/internal/service"
)

func TestClientIPTrustProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:12345"
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	if got := ClientIP(r, false); got != "10.0.0.5" {
		t.Fatalf("unexpected direct IP: %s", got)
	}
	if got := ClientIP(r, true); got != "203.0.113.5" {
		t.Fatalf("unexpected proxied IP: %s", got)
	}
}

func TestClientIPHeaderPriority(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.5:12345"
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	r.Header.Set("X-Real-IP", "198.51.100.8")
	r.Header.Set("CF-Connecting-IP", "198.51.100.9")

	if got := ClientIP(r, true); got != "198.51.100.9" {
		t.Fatalf("edge proxy header must win, got %s", got)
	}
	r.Header.Del("CF-Connecting-IP")
	if got := ClientIP(r, true); got != "198.51.100.8" {
		t.Fatalf("X-Real-IP outranks X-Forwarded-For, got %s", got)
	}
}

func TestClientIPNormalizesLoopbackAndRejectsGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "[::1]:1234"
	if got := ClientIP(r, true); got != "127.0.0.1" {
		t.Fatalf("expected IPv6 loopback to map to 127.0.0.1, got %s", got)
	}

	r.Header.Set("X-Forwarded-For", "not-an-ip, 10.0.0.1")
	if got := ClientIP(r, true); got != "127.0.0.1" {
		t.Fatalf("invalid header must fall back to connection address, got %s", got)
	}

	r.RemoteAddr = "garbage"
	r.Header.Del("X-Forwarded-For")
	if got := ClientIP(r, true); got != "unknown" {
		t.Fatalf("expected unknown, got %s", got)
	}
}

func TestCSRFChecksSessionContextToken(t *testing.T) {
	loc := i18n.New("en")
	h := CSRF(loc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("safe methods pass through, got %d", rec.Code)
	}

	post := httptest.NewRequest(http.MethodPost, "/", nil)
	post = post.WithContext(WithSessionContext(post.Context(), service.SessionContext{ID: "c1", AntiForgeryToken: "tok"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, post)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing header must be rejected, got %d", rec.Code)
	}

	post.Header.Set("X-CSRF-Token", "tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, post)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("matching token must pass, got %d", rec.Code)
	}
}

func TestRateLimitSetsRetryAfter(t *testing.T) {
	loc := i18n.New("en")
	h := RateLimit(rate.NewLimiter(), "submit", 1, time.Minute, true, loc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "192.0.2.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		if rec.Code != want {
			t.Fatalf("request %d: got %d want %d", i, rec.Code, want)
		}
		if want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Fatalf("expected Retry-After header")
		}
	}
}

func TestRequestLoggerLevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := RequestIDMiddleware(RequestLogger(zap.New(core), false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for 404, got %s", entries[0].Level)
	}
	if entries[0].ContextMap()["request_id"] == "" {
		t.Fatalf("expected request id field")
	}
}
