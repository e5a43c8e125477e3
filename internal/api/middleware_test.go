package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
)

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Error("expected request id in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header = %q, context = %q", got, seen)
	}
}

func TestRequestIDMiddleware_PropagatesIncoming(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "client-supplied" {
		t.Errorf("request id = %q, want client-supplied", seen)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

type stubLimiter struct {
	allow bool
	key   string
}

func (s *stubLimiter) Allow(ctx context.Context, clientKey string, maxRequests int, window time.Duration) bool {
	s.key = clientKey
	return s.allow
}

func TestRateLimiter_Allows(t *testing.T) {
	limiter := &stubLimiter{allow: true}
	rl := NewRateLimiter(limiter, config.RateLimitConfig{MaxRequests: 10, Window: time.Minute}, zap.NewNop())

	called := false
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("expected request to pass through")
	}
}

func TestRateLimiter_Rejects(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	rl := NewRateLimiter(limiter, config.RateLimitConfig{MaxRequests: 1, Window: time.Minute}, zap.NewNop())

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "10.0.0.1:51234", "", "10.0.0.1"},
		{"forwarded single", "10.0.0.1:51234", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:51234", "203.0.113.7, 10.0.0.2", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for preflight")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS headers on preflight")
	}
}
