package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"kicomport/internal/config"
	"kicomport/internal/intake"
	"kicomport/internal/logging"
	"kicomport/internal/ollama"
	"kicomport/internal/services"
	"kicomport/internal/store"
)

const requestIDHeader = "X-Request-ID"

// AIHealthChecker reports whether the scoring backend is reachable.
type AIHealthChecker interface {
	Health(ctx context.Context) error
}

// Server exposes the intake pipeline over HTTP.
type Server struct {
	store    *store.Store
	cfg      *config.Config
	pipeline *intake.Pipeline
	aiHealth AIHealthChecker
	logger   *slog.Logger
	router   chi.Router
}

// Option adjusts optional server wiring.
type Option func(*Server)

// WithAIHealthChecker overrides the reachability probe for the scoring backend.
func WithAIHealthChecker(checker AIHealthChecker) Option {
	return func(s *Server) {
		s.aiHealth = checker
	}
}

// New builds the HTTP server around the store and pipeline.
func New(st *store.Store, cfg *config.Config, pipeline *intake.Pipeline, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	server := &Server{
		store:    st,
		cfg:      cfg,
		pipeline: pipeline,
		logger:   logger.With("component", "api"),
	}
	if cfg.Ollama.Enabled {
		server.aiHealth = ollama.New(cfg.Ollama)
	}
	for _, opt := range opts {
		opt(server)
	}
	server.router = server.routes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/uploads", s.handleUpload)
			r.Get("/jobs", s.handleListJobs)
			r.Get("/jobs/{id}", s.handleGetJob)
			r.Post("/jobs/{id}/select", s.handleSelect)
			r.Post("/jobs/{id}/reset", s.handleResetSelections)
			r.Post("/jobs/{id}/import", s.handleImport)
			r.Get("/config", s.handleConfig)
		})
	})

	return r
}

// requestID assigns each request an identifier carried through the service
// context and echoed back to the client.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate enforces the configured bearer token. With no token configured
// the API is open, which suits single-user LAN deployments.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.cfg.Paths.APIToken
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		supplied := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			s.writeErrorStatus(w, r, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
