// Package chi exposes the recommendation pipeline over HTTP.
package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Longhodac/anirec/internal/domain"
	"github.com/Longhodac/anirec/internal/logger"
	"github.com/Longhodac/anirec/internal/metrics"
)

// Recommender is the pipeline surface the HTTP layer needs.
type Recommender interface {
	Recommend(ctx context.Context, query string) (string, error)
	HealthCheck(ctx context.Context) error
	IndexSize() int
}

// Server handles the HTTP API.
type Server struct {
	rec    Recommender
	logger *zap.Logger
}

// NewServer creates an HTTP API server around a constructed pipeline.
func NewServer(rec Recommender, logger *zap.Logger) *Server {
	return &Server{rec: rec, logger: logger}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(metrics.Middleware())

	r.Post("/v1/recommend", s.handleRecommend)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// requestLogger stores a request-scoped logger in the context so handlers
// can log with the request id attached.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.With(zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), log)))
	})
}

type recommendRequest struct {
	Query string `json:"query"`
}

type recommendResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	answer, err := s.rec.Recommend(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendResponse{Answer: answer})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rec.HealthCheck(r.Context()); err != nil {
		logger.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": s.rec.IndexSize(),
	})
}

// handleDomainError maps sentinel errors to HTTP status codes.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrIndexUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrGenerationFailed),
		errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.FromContext(r.Context()).Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
