package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
	"github.com/JakeFAU/page-analyzer/internal/metrics"
)

// Analyzer is the application surface the handlers drive.
type Analyzer interface {
	AddURL(ctx context.Context, raw string) (analyzer.AddResult, error)
	RunCheck(ctx context.Context, urlID int64) (analyzer.Check, error)
	GetURL(ctx context.Context, id int64) (analyzer.URLDetail, error)
	ListURLs(ctx context.Context, page int) (analyzer.URLPage, error)
}

// Pinger reports whether a downstream dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the analyzer service.
type Server struct {
	router chi.Router
	svc    Analyzer
	ready  Pinger
	views  *views
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. ready may be nil.
func NewServer(svc Analyzer, ready Pinger, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("analyzer service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	s := &Server{
		svc:    svc,
		ready:  ready,
		views:  v,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(logger))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger, func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusInternalServerError)
	}))
	r.Use(securityHeadersMiddleware)
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound)
	})

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", s.index)
	r.Route("/urls", func(r chi.Router) {
		r.Get("/", s.listURLs)
		r.Post("/", s.createURL)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.showURL)
			r.Post("/", s.runCheck)
			r.Post("/checks", s.runCheck)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
