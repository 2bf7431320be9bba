// Package api exposes batches and reports over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
	"github.com/AI-Template-SDK/senso-tracker/internal/scoring"
	"github.com/AI-Template-SDK/senso-tracker/internal/store"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

// Server holds the handlers' dependencies
type Server struct {
	tracker   services.TrackerService
	reports   services.ReportService
	secret    []byte
	adminRole string
	now       func() time.Time
}

func NewServer(cfg config.AuthConfig, tracker services.TrackerService, reports services.ReportService) *Server {
	role := cfg.AdminRole
	if role == "" {
		role = "admin"
	}
	return &Server{
		tracker:   tracker,
		reports:   reports,
		secret:    []byte(cfg.JWTSecret),
		adminRole: role,
		now:       time.Now,
	}
}

// Routes builds the router with /health and the authenticated /v1 group
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.With(s.requireRole(s.adminRole)).Post("/batches", s.handleRunBatch)
		r.Get("/aggregates/{month}", s.handleAggregate)
		r.Get("/scores/{month}", s.handleScores)
		r.Get("/sources/{provider}/{month}", s.handleSources)
		r.Get("/days/{month}", s.handleDays)
		r.Get("/maps/{month}", s.handleMaps)
	})

	return r
}

type runBatchRequest struct {
	services.BatchRequest
	Persist bool `json:"persist"`
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	var req runBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, errors.New("provider is required"))
		return
	}

	res, err := s.tracker.RunBatch(r.Context(), req.BatchRequest)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Persist {
		if err := s.tracker.Persist(r.Context(), res, s.now()); err != nil {
			zap.L().Error("batch persisted with errors", zap.String("batch_id", res.BatchID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.reports.Invalidate()
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	isCity, err := parseIsCity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	rows, err := s.reports.Aggregate(r.Context(), services.AggregateQuery{
		Month:     chi.URLParam(r, "month"),
		IsCity:    isCity,
		Locations: q["location"],
		Provider:  q.Get("provider"),
		GroupBy:   q.Get("group_by"),
		Metric:    q.Get("metric"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	isCity, err := parseIsCity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	report, err := s.reports.Scores(r.Context(), services.ScoreQuery{
		Month:     chi.URLParam(r, "month"),
		IsCity:    isCity,
		Locations: q["location"],
		Provider:  q.Get("provider"),
		Metric:    q.Get("metric"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	top, err := s.reports.TopSources(r.Context(), chi.URLParam(r, "provider"), chi.URLParam(r, "month"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	days, err := s.reports.Days(r.Context(), chi.URLParam(r, "month"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	isCity, err := parseIsCity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := s.reports.Maps(r.Context(), chi.URLParam(r, "month"), isCity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func parseIsCity(r *http.Request) (*bool, error) {
	raw := r.URL.Query().Get("is_city")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New("is_city must be a boolean")
	}
	return &v, nil
}

// StatusFor maps service errors onto HTTP status codes
func StatusFor(err error) int {
	var (
		configErr      *config.ConfigError
		unsupportedErr *providers.UnsupportedProviderError
		validationErr  *scoring.ValidationError
	)
	switch {
	case errors.As(err, &configErr),
		errors.As(err, &unsupportedErr),
		errors.As(err, &validationErr),
		errors.Is(err, store.ErrInvalidMetric),
		errors.Is(err, store.ErrInvalidGroupBy):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}
