package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-report/internal/app"
	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/presenter"
	"github.com/couchcryptid/quake-report/internal/settings"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxSettingsBody = 4 << 10

// Feed is the earthquake list the API exposes.
type Feed interface {
	Snapshot(ctx context.Context) (app.Snapshot, error)
	Refresh() error
	DetailURL(ctx context.Context, index int) (string, error)
}

// SettingsStore reads and replaces the query preferences.
type SettingsStore interface {
	Current() settings.Settings
	Save(next settings.Settings) (settings.Settings, error)
}

// Server exposes health, readiness, metrics and the earthquake API.
type Server struct {
	httpServer *http.Server
	feed       Feed
	settings   SettingsStore
	logger     *slog.Logger
}

// NewServer creates an HTTP server with probe, metrics and API routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, feed Feed, store SettingsStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		feed:     feed,
		settings: store,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/earthquakes", s.handleList)
	mux.HandleFunc("POST /api/earthquakes/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/earthquakes/{index}/url", s.handleDetailURL)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snap, err := s.feed.Snapshot(r.Context())
	if err != nil {
		s.writeUnavailable(w, err)
		return
	}
	if snap.Rows == nil {
		snap.Rows = []presenter.RowHandle{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	err := s.feed.Refresh()
	switch {
	case err == nil:
		sharedobs.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
	case errors.Is(err, loader.ErrLoadInProgress):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, loader.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, domain.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleDetailURL(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("index must be an integer"))
		return
	}

	u, err := s.feed.DetailURL(r.Context(), index)
	switch {
	case err == nil:
		sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"url": u})
	case errors.Is(err, presenter.ErrNoDetailURL):
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "No earthquake URL available"})
	case errors.Is(err, presenter.ErrIndexOutOfRange):
		writeError(w, http.StatusNotFound, err)
	default:
		s.writeUnavailable(w, err)
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.settings.Current())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	saved, err := s.settings.Save(next)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, saved)
}

func (s *Server) writeUnavailable(w http.ResponseWriter, err error) {
	s.logger.Warn("control loop unavailable", "error", err)
	writeError(w, http.StatusServiceUnavailable, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
