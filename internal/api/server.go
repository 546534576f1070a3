// Package api exposes the HTTP surface: upload brokering, file lifecycle
// mutations, listings and the quota summary. Identity arrives from the
// upstream identity collaborator; every mutation additionally requires a
// per-session anti-forgery token.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skystash/skystash/internal/lifecycle"
	"github.com/skystash/skystash/internal/query"
	"github.com/skystash/skystash/internal/quota"
	"github.com/skystash/skystash/internal/upload"
)

type Server struct {
	uploads *upload.Coordinator
	files   *lifecycle.Service
	queries *query.Service
	ledger  *quota.Ledger
	health  func(context.Context) error
	cfg     Config
	log     *slog.Logger
}

func NewServer(uploads *upload.Coordinator, files *lifecycle.Service, queries *query.Service, ledger *quota.Ledger, health func(context.Context) error, cfg Config, log *slog.Logger) *Server {
	return &Server{
		uploads: uploads,
		files:   files,
		queries: queries,
		ledger:  ledger,
		health:  health,
		cfg:     cfg,
		log:     log,
	}
}

// Handler builds the chi router. Read endpoints sit behind identity only;
// mutations additionally pass the anti-forgery gate.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/csrf", s.handleCSRFToken)
		r.Get("/storage", s.handleStorageSummary)
		r.Get("/activity", s.handleActivityFeed)

		r.Get("/files", s.handleListFiles)
		r.Get("/files/search", s.handleSearchFiles)
		r.Get("/files/recent", s.handleRecentFiles)
		r.Get("/files/{id}/download", s.handleDownload)

		r.Group(func(r chi.Router) {
			r.Use(s.antiForgery)

			r.Post("/uploads/credential", s.handleUploadCredential)
			r.Post("/uploads/complete", s.handleUploadComplete)
			r.Post("/uploads/direct", s.handleDirectUpload)

			r.Patch("/files/{id}", s.handleUpdateFile)
			r.Delete("/files/{id}", s.handleTrashFile)
			r.Patch("/files/{id}/restore", s.handleRestoreFile)
			r.Delete("/files/{id}/permanent", s.handlePurgeFile)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.health(r.Context()); err != nil {
		s.log.ErrorContext(r.Context(), "healthcheck failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"token": s.antiForgeryToken(subject)})
}

func (s *Server) handleStorageSummary(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	usage, err := s.ledger.Usage(r.Context(), subject)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
