// Package httpapi implements the HTTP API of spec.md §6: a thin
// net/http.ServeMux surface over the application supervisor's
// configuration manager, plugin/data-source registries, and
// telemetry route. It is grounded on the teacher's
// internal/api/server.go — plain http.Server + http.ServeMux +
// encoding/json, Go 1.22 method-and-path route patterns, no web
// framework — generalized from an OpenAI-compatible chat API onto the
// billboard's settings/schema/plugin/datasource/schedule surface.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/orrery-labs/inkframe/internal/app"
	"github.com/orrery-labs/inkframe/internal/buildinfo"
)

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	sup     *app.Supervisor
	logger  *slog.Logger

	httpServer   *http.Server
	telemetryHub *telemetryHub
	startedAt    time.Time
}

// NewServer creates a Server bound to sup. address/port follow the
// teacher's NewServer signature exactly; a telemetryHub is always
// built (and subscribed to the router's "telemetry" topic) even if no
// client ever connects to /api/telemetry/ws.
func NewServer(address string, port int, sup *app.Supervisor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hub := newTelemetryHub(logger)
	sup.Router.AddRoute("telemetry", hub)

	return &Server{
		address:      address,
		port:         port,
		sup:          sup,
		logger:       logger,
		telemetryHub: hub,
		startedAt:    time.Now(),
	}
}

// mux builds the routing table (spec.md §6's endpoint table plus the
// SPEC_FULL.md-added /api/telemetry/ws and /api/info). Split out of
// Start so tests can exercise routes via httptest without binding a
// real listener.
func (s *Server) mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/settings/{name}", s.handleSettingsGet)
	mux.HandleFunc("PUT /api/settings/{name}", s.handleSettingsPut)
	mux.HandleFunc("GET /api/schemas/{name}", s.handleSchemaGet)

	mux.HandleFunc("GET /api/plugins/list", s.handlePluginList)
	mux.HandleFunc("GET /api/plugins/{id}/settings", s.handlePluginSettingsGet)
	mux.HandleFunc("PUT /api/plugins/{id}/settings", s.handlePluginSettingsPut)

	mux.HandleFunc("GET /api/datasources/list", s.handleDataSourceList)
	mux.HandleFunc("GET /api/datasources/{id}/settings", s.handleDataSourceSettingsGet)
	mux.HandleFunc("PUT /api/datasources/{id}/settings", s.handleDataSourceSettingsPut)

	mux.HandleFunc("GET /api/schedule/playlist/list", s.handlePlaylistList)
	mux.HandleFunc("GET /api/schedule/timer/list", s.handleTimerTaskList)
	mux.HandleFunc("GET /api/schedule/render", s.handleScheduleRender)

	mux.HandleFunc("GET /api/telemetry/ws", s.handleTelemetryWS)
	mux.HandleFunc("GET /api/telemetry/recent", s.handleTelemetryRecent)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It blocks until the server
// stops (normally via Shutdown from another goroutine), mirroring the
// teacher's Start/Shutdown split exactly.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port, "version", buildinfo.Version)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// handleTelemetryRecent serves the persisted telemetry log, when a
// store is configured (spec.md §9's telemetry addition; see
// SPEC_FULL.md §6's "/api/telemetry/ws" note for the companion
// live-stream endpoint).
func (s *Server) handleTelemetryRecent(w http.ResponseWriter, r *http.Request) {
	if s.sup.TelemetryStore == nil {
		errorResponse(w, s.logger, http.StatusServiceUnavailable, "telemetry store not configured")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	frames, err := s.sup.TelemetryStore.Recent(limit)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	writeJSON(w, map[string]any{"frames": frames}, s.logger)
}
