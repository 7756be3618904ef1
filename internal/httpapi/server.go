// Package httpapi exposes the engine's HTTP surface: health, Prometheus
// metrics, and the websocket upgrade for
// internal/broadcast (spec.md §4.8, §5).
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/mev-engine/evm-arb-engine/internal/broadcast"
	"github.com/mev-engine/evm-arb-engine/internal/config"
)

// Server is the engine's HTTP server: health, Prometheus metrics, and the
// websocket upgrade for the broadcast hub.
type Server struct {
	cfg    *config.Config
	server *http.Server
	hub    *broadcast.Hub
	logger *zap.Logger

	startTime time.Time
}

// New builds a Server bound to cfg.Server's host/port, wiring hub to the
// /ws endpoint.
func New(cfg *config.Config, hub *broadcast.Hub, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		hub:       hub,
		logger:    logger.With(zap.String("component", "http_server")),
		startTime: time.Now(),
	}
	s.setupServer()
	return s
}

func (s *Server) setupServer() {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.handleWebsocket)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
}

// Start begins serving in the background. ListenAndServe errors other than
// a clean shutdown are logged, not returned, so the caller's fx lifecycle
// hook returns immediately.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	s.logger.Info("http server started", zap.String("addr", s.server.Addr))
	return nil
}

// Stop gracefully shuts the server down, honoring ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"uptime_seconds":   time.Since(s.startTime).Seconds(),
		"websocket_clients": s.hub.ConnectionCount(),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.Int("status", wrapper.statusCode), zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
