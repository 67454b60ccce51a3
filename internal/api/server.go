// Package api exposes the HTTP interface for the index service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mxindex/mxindex/internal/catalog"
	"github.com/mxindex/mxindex/internal/telemetry"
)

// Indexer runs the discovery pipeline for a single domain.
type Indexer interface {
	GetOrIndex(ctx context.Context, domain string, force bool) (catalog.ServerRecord, error)
}

// Pinger is implemented by repositories that can report backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config controls HTTP surface behavior.
type Config struct {
	AuthEnabled    bool
	APIKey         string
	RequestTimeout time.Duration
	Version        string
}

// Server wires HTTP handlers to the repository and the indexing pipeline.
type Server struct {
	router  chi.Router
	repo    catalog.Repository
	indexer Indexer
	logger  *zap.Logger
	cfg     Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(repo catalog.Repository, indexer Indexer, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		repo:    repo,
		indexer: indexer,
		logger:  logger,
		cfg:     cfg,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))
	if cfg.AuthEnabled {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/", s.info)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/servers", func(r chi.Router) {
		r.Get("/", s.listServers)
		r.Post("/", s.addServer)
		r.Get("/search", s.searchServers)
		r.Get("/{domain}", s.getServer)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":        "mxindex",
		"version":     s.cfg.Version,
		"description": "Matrix homeserver index API",
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.repo.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unready",
				"database": "error",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	result, err := s.repo.ListFiltered(r.Context(), catalog.SearchFilter{})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type addServerRequest struct {
	Domain  string `json:"domain"`
	Refresh bool   `json:"refresh"`
}

func (s *Server) addServer(w http.ResponseWriter, r *http.Request) {
	var req addServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !catalog.ValidDomain(req.Domain) {
		writeError(w, http.StatusBadRequest, "domain must be a bare host name without path or port")
		return
	}

	created := true
	if _, err := s.repo.GetByDomain(r.Context(), req.Domain); err == nil {
		if !req.Refresh {
			writeError(w, http.StatusConflict, "server already indexed")
			return
		}
		created = false
	} else if !errors.Is(err, catalog.ErrNotFound) {
		s.writeDomainError(w, err)
		return
	}

	record, err := s.indexer.GetOrIndex(r.Context(), req.Domain, req.Refresh)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, record)
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	if !catalog.ValidDomain(domain) {
		writeError(w, http.StatusBadRequest, "invalid domain")
		return
	}
	record, err := s.repo.GetByDomain(r.Context(), domain)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) searchServers(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSearchFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.repo.ListFiltered(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeDomainError maps catalog error kinds onto HTTP statuses. Anything
// unrecognized is a 500 and gets logged; known kinds stay observable to the
// caller as distinct statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "server not found")
	case errors.Is(err, catalog.ErrConflict):
		writeError(w, http.StatusConflict, "server already indexed")
	case errors.Is(err, catalog.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrUnreachableDomain):
		writeError(w, http.StatusBadGateway, "domain unreachable: no probe returned data")
	case errors.Is(err, catalog.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request deadline exceeded")
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
