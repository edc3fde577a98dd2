// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsgrab/newsgrab/internal/metrics"
	"github.com/newsgrab/newsgrab/internal/scraper"
)

// UnitLister reports the execution units of the current orchestration
// run.
type UnitLister interface {
	Units() []scraper.ExecutionUnit
}

// Server wires HTTP handlers to the article store and orchestrator.
type Server struct {
	router chi.Router
	store  scraper.ArticleStore
	units  UnitLister
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. units may
// be nil when no orchestration run is active.
func NewServer(store scraper.ArticleStore, units UnitLister, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		units:  units,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/stats", s.getStats)
		r.Route("/seeds", func(r chi.Router) {
			r.Get("/", s.listSeeds)
			r.Post("/", s.addSeed)
		})
		r.Get("/history/{url_hash}", s.getHistory)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Statistics(r.Context(), 1); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	units := []scraper.ExecutionUnit{}
	if s.units != nil {
		units = s.units.Units()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"units": units})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	days := intQuery(r, "days", 7)
	stats, err := s.store.Statistics(r.Context(), days)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch statistics")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"window_days": days, "stats": stats})
}

func (s *Server) listSeeds(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 100)
	seeds, err := s.store.ListActiveSeeds(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch seeds")
		return
	}
	if seeds == nil {
		seeds = []scraper.ManagedSeed{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"seeds": seeds})
}

type addSeedRequest struct {
	URL      string `json:"url"`
	Label    string `json:"label"`
	Parser   string `json:"parser"`
	Priority int    `json:"priority"`
}

func (s *Server) addSeed(w http.ResponseWriter, r *http.Request) {
	var req addSeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.store.AddSeed(r.Context(), req.URL, req.Label, req.Parser, req.Priority); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to add seed")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"url": req.URL})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	urlHash := chi.URLParam(r, "url_hash")
	limit := intQuery(r, "limit", 50)
	entries, err := s.store.History(r.Context(), urlHash, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	if entries == nil {
		entries = []scraper.HistoryEntry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"url_hash": urlHash, "history": entries})
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
