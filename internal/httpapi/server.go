// Package httpapi exposes the read projections and dispatchable mutations
// over HTTP for the view layer.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signalsai/internal/backup"
	"signalsai/internal/core"
	"signalsai/pkg/domain"
)

// Server wires the core service and backup manager into a chi router.
type Server struct {
	service *core.Service
	backups *backup.Manager
	logger  *slog.Logger
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithBackups enables the backup endpoints.
func WithBackups(m *backup.Manager) Option {
	return func(s *Server) { s.backups = m }
}

// WithLogger wires structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRegistry mounts /metrics for the given registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
}

// New builds the router.
func New(service *core.Service, opts ...Option) *Server {
	s := &Server{
		service: service,
		logger:  slog.Default(),
		router:  chi.NewRouter(),
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/signals", s.handleListSignals)
		r.Get("/signals/{id}", s.handleGetSignal)
		r.Post("/signals/{id}/feedback", s.handleSignalFeedback)
		r.Post("/signals/{id}/viewed", s.handleSignalViewed)
		r.Delete("/signals/{id}", s.handleRemoveSignal)

		r.Get("/accounts", s.handleListAccounts)
		r.Get("/accounts/{id}", s.handleGetAccount)
		r.Get("/accounts/{id}/notes", s.handleListNotes)
		r.Post("/accounts/{id}/notes", s.handleAddNote)

		r.Get("/actions", s.handleListActions)
		r.Post("/actions/{id}/feedback", s.handleActionFeedback)

		r.Get("/comments", s.handleListComments)
		r.Post("/comments", s.handleAddComment)
		r.Put("/comments/{id}", s.handleEditComment)
		r.Delete("/comments/{id}", s.handleRemoveComment)

		r.Get("/plans", s.handleListPlans)
		r.Post("/plans", s.handleCreatePlan)
		r.Put("/plans/{id}", s.handleUpdatePlan)
		r.Delete("/plans/{id}", s.handleDeletePlan)

		r.Get("/notes/pinned", s.handlePinnedNotes)
		r.Put("/notes/{id}", s.handleEditNote)
		r.Delete("/notes/{id}", s.handleRemoveNote)
		r.Post("/notes/{id}/pin", s.handleToggleNotePin)

		r.Get("/summary", s.handleSummary)

		if s.backups != nil {
			r.Get("/backups", s.handleListBackups)
			r.Post("/backups", s.handleCreateBackup)
		}
	})
}

// dispatch runs one action and renders the outcome or the mapped error.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, action core.StoreAction) {
	outcome, err := s.service.Dispatch(r.Context(), action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if outcome.RolledBack {
		s.writeJSON(w, http.StatusBadGateway, map[string]any{
			"operation_id": outcome.OperationID,
			"rolled_back":  true,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"operation_id": outcome.OperationID,
		"entity":       outcome.Entity,
		"degraded":     outcome.Degraded,
		"no_op":        outcome.NoOp,
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var notFound core.ErrNotFound
	var ruleErr domain.RuleViolationError
	switch {
	case errors.As(err, &notFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &ruleErr):
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "blocked by rules",
			"violations": ruleErr.Result.Violations,
		})
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func decode[T any](r *http.Request) (T, error) {
	var payload T
	defer func() { _ = r.Body.Close() }()
	err := json.NewDecoder(r.Body).Decode(&payload)
	return payload, err
}

// list renders a read projection, mapping a nil slice to [].
func writeList[T any](s *Server, w http.ResponseWriter, items []T, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	s.writeJSON(w, http.StatusOK, items)
}
