package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/water-globe-etl/internal/adapter/czml"
	"github.com/couchcryptid/water-globe-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresher triggers an out-of-band fetch-transform-load cycle.
type Refresher interface {
	Refresh(ctx context.Context) (domain.LoadInfo, error)
}

// API holds what the /api routes read from and act on.
type API struct {
	Source    *domain.DataSource
	Refresher Refresher
	Clock     domain.ClockSettings
}

// Server exposes health, readiness, metrics, and entity API endpoints.
type Server struct {
	httpServer *http.Server
	api        API
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and /api routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, api API, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:    api,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/entities", s.handleEntities)
	mux.HandleFunc("GET /api/czml", s.handleCZML)
	mux.HandleFunc("GET /api/series", s.handleSeries)
	mux.HandleFunc("PUT /api/series/display", s.handleSeriesDisplay)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

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

type entitiesResponse struct {
	Load            domain.LoadInfo `json:"load"`
	SeriesToDisplay string          `json:"series_to_display"`
	Entities        []domain.Entity `json:"entities"`
}

// handleEntities lists the loaded entities. ?series= narrows the list to one series.
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities := s.api.Source.Entities().Snapshot()
	if name := r.URL.Query().Get("series"); name != "" {
		filtered := entities[:0]
		for _, e := range entities {
			if e.SeriesName == name {
				filtered = append(filtered, e)
			}
		}
		entities = filtered
	}

	sharedobs.WriteJSON(w, http.StatusOK, entitiesResponse{
		Load:            s.api.Source.LastLoad(),
		SeriesToDisplay: s.api.Source.SeriesToDisplay(),
		Entities:        entities,
	})
}

func (s *Server) handleCZML(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	entities := s.api.Source.Entities().Snapshot()
	if err := czml.Encode(w, s.api.Source.Name(), s.api.Clock, entities); err != nil {
		s.logger.Warn("write czml failed", "error", err)
	}
}

type seriesResponse struct {
	Series          []string `json:"series"`
	SeriesToDisplay string   `json:"series_to_display"`
	HeightScale     float64  `json:"height_scale"`
	Loading         bool     `json:"loading"`
}

func (s *Server) seriesState() seriesResponse {
	return seriesResponse{
		Series:          s.api.Source.SeriesNames(),
		SeriesToDisplay: s.api.Source.SeriesToDisplay(),
		HeightScale:     s.api.Source.HeightScale(),
		Loading:         s.api.Source.IsLoading(),
	}
}

func (s *Server) handleSeries(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.seriesState())
}

type displayRequest struct {
	Series *string `json:"series"`
}

func (s *Server) handleSeriesDisplay(w http.ResponseWriter, r *http.Request) {
	var req displayRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil || req.Series == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"series\": \"<name>\"}")
		return
	}

	s.api.Source.SetSeriesToDisplay(*req.Series)
	s.logger.Info("series to display changed", "series", *req.Series)
	sharedobs.WriteJSON(w, http.StatusOK, s.seriesState())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	info, err := s.api.Refresher.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, info)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
