package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fd1az/savvy-farm/internal/logger"
)

func newTestServer() *Server {
	return NewServer(0, "test", logger.New(io.Discard, logger.LevelError, "test", nil))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth_ReportsChecks(t *testing.T) {
	s := newTestServer()
	s.RegisterCheck("rpc", func(ctx context.Context) (bool, string) { return true, "block 100" })
	s.RegisterCheck("price_api", func(ctx context.Context) (bool, string) { return false, "circuit open" })

	rec := get(t, s.Handler(), "/health")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "degraded" {
		t.Errorf("expected degraded, got %s", status.Status)
	}
	if !status.Checks["rpc"].Healthy || status.Checks["price_api"].Healthy {
		t.Errorf("unexpected checks: %+v", status.Checks)
	}
}

func TestReady_GatedOnReadiness(t *testing.T) {
	s := newTestServer()

	var ready atomic.Bool
	s.RegisterReadiness("dashboard", func(ctx context.Context) (bool, string) {
		if !ready.Load() {
			return false, "tokens loading"
		}
		return true, ""
	})

	rec := get(t, s.Handler(), "/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before ready, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tokens loading") {
		t.Errorf("expected reason in body, got %q", rec.Body.String())
	}

	ready.Store(true)

	rec = get(t, s.Handler(), "/ready")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 once ready, got %d", rec.Code)
	}

	// Readiness checks are not part of /health.
	if rec := get(t, s.Handler(), "/health"); rec.Code != http.StatusOK {
		t.Errorf("expected healthy, got %d", rec.Code)
	}
}

func TestLive(t *testing.T) {
	rec := get(t, newTestServer().Handler(), "/live")
	if rec.Code != http.StatusOK || rec.Body.String() != "alive" {
		t.Errorf("unexpected live response: %d %q", rec.Code, rec.Body.String())
	}
}
