package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mev-engine/evm-arb-engine/internal/broadcast"
	"github.com/mev-engine/evm-arb-engine/internal/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	hub := broadcast.New(0, zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return New(cfg, hub, zap.NewNop())
}

func TestHealthCheck_ReturnsHealthy(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestMetrics_ServesPrometheusFormat(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
