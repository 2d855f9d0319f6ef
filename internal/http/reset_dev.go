//go:build dev

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// mountResetRoute exposes /reset-db, which drops and recreates the schema.
// It exists only in binaries built with -tags dev.
func mountResetRoute(r chi.Router, s *Server) {
	r.Get("/reset-db", s.handleResetDB)
}

func (s *Server) handleResetDB(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context()); err != nil {
		s.serverError(w, r, "Database reset failed", err)
		return
	}
	// Reset restarts ID sequences, so cached lists could match new users.
	if s.purgeCache != nil {
		s.purgeCache()
	}
	s.logger.WarnContext(r.Context(), "Database reset via HTTP")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("DB reset done"))
}
