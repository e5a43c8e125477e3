package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(ctx context.Context) error { return s.err }

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadiness_AllHealthy(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.Register("mysql", stubChecker{})
	h.Register("redis", stubChecker{})

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status     string                     `json:"status"`
		Components map[string]componentHealth `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}
	if len(body.Components) != 2 {
		t.Errorf("components = %d, want 2", len(body.Components))
	}
}

func TestReadiness_OneUnhealthy(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.Register("mysql", stubChecker{})
	h.Register("kafka", stubChecker{err: errors.New("no brokers")})

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body struct {
		Status     string                     `json:"status"`
		Components map[string]componentHealth `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Components["kafka"].Error == "" {
		t.Error("expected kafka component to carry the error")
	}
}
