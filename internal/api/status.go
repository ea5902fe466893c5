package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/metrics"
	"github.com/JakeFAU/sitegen-portal/internal/store"
)

// queryStatus handles GET /webhooks/status?clientId=.
func (s *Server) queryStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, r, r.URL.Query().Get("clientId"))
}

// getStatus handles GET /status/{clientId}.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, r, chi.URLParam(r, "clientId"))
}

// writeStatus serves the stored record, or the default record when none is
// stored. The default is never persisted.
func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, clientID string) {
	setNoCache(w)
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "clientId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	rec, err := s.deps.Store.Get(ctx, clientID)
	switch {
	case err == nil:
		metrics.ObserveStatusQuery("stored")
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, store.ErrNotFound):
		metrics.ObserveStatusQuery("default")
		writeJSON(w, http.StatusOK, generation.Default(clientID))
	default:
		s.logger.Error("load status failed", zap.String("client_id", clientID), zap.Error(err))
		metrics.ObserveStatusQuery("error")
		writeError(w, http.StatusInternalServerError, "Failed to load status")
	}
}

func chiParam(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}
