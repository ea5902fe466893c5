package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/dispatch"
	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/metrics"
	"github.com/JakeFAU/sitegen-portal/internal/progress"
	"github.com/JakeFAU/sitegen-portal/internal/store"
	"github.com/JakeFAU/sitegen-portal/internal/validation"
)

const (
	estimatedTime   = "3-5 minutes"
	cancelledReason = "cancelled by user"
)

// generate handles POST /generate.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req generation.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "Validation failed", verr.Messages()...)
			return
		}
		writeError(w, http.StatusBadRequest, "Validation failed")
		return
	}

	clientID, err := s.deps.IDs.NewClientID(req.BusinessName)
	if err != nil {
		s.logger.Error("generate client id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start website generation")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()
	payload := dispatch.PayloadFromRequest(clientID, req, s.cfg.WebhookURL)
	if err := s.deps.Trigger.TriggerGeneration(ctx, payload); err != nil {
		s.writeDispatchError(w, clientID, err)
		return
	}
	metrics.ObserveDispatch("generate", "ok")
	s.logger.Info("generation triggered",
		zap.String("client_id", clientID),
		zap.String("request_id", RequestID(r.Context())),
	)

	writeJSON(w, http.StatusOK, generation.Response{
		Success:       true,
		ClientID:      clientID,
		Message:       "Website generation started",
		EstimatedTime: estimatedTime,
		StatusURL:     "/status/" + clientID,
	})
}

func (s *Server) writeDispatchError(w http.ResponseWriter, clientID string, err error) {
	var upstream *dispatch.UpstreamError
	switch {
	case errors.Is(err, dispatch.ErrNotConfigured):
		metrics.ObserveDispatch("generate", "not_configured")
		s.logger.Error("dispatch client not configured")
		writeError(w, http.StatusServiceUnavailable, "Website generation is not configured")
	case errors.As(err, &upstream):
		metrics.ObserveDispatch("generate", "upstream_error")
		s.logger.Error("dispatch rejected",
			zap.String("client_id", clientID),
			zap.Int("status", upstream.StatusCode),
		)
		writeError(w, http.StatusInternalServerError, "Failed to trigger website generation",
			fmt.Sprintf("upstream status %d", upstream.StatusCode))
	default:
		metrics.ObserveDispatch("generate", "error")
		s.logger.Error("dispatch failed", zap.String("client_id", clientID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to trigger website generation")
	}
}

type cancelResponse struct {
	Status   string `json:"status"`
	ClientID string `json:"clientId"`
}

// cancelGeneration handles POST /status/{clientId}/cancel. The record is
// moved to the cancelled error row first; telling the workflow is best effort.
func (s *Server) cancelGeneration(w http.ResponseWriter, r *http.Request) {
	clientID := chiParam(r, "clientId")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "clientId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	current, err := s.deps.Store.Get(ctx, clientID)
	switch {
	case err == nil && current.Status.Terminal():
		writeError(w, http.StatusConflict, "Generation already finished")
		return
	case err != nil && !errors.Is(err, store.ErrNotFound):
		s.logger.Error("load status for cancel failed", zap.String("client_id", clientID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to cancel generation")
		return
	}

	now := s.deps.Clock.Now()
	rec := generation.Cancelled(clientID, cancelledReason, now)
	if err := s.deps.Store.Put(ctx, rec); err != nil {
		s.logger.Error("store cancel failed", zap.String("client_id", clientID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to cancel generation")
		return
	}
	s.deps.Events.Emit(progress.NewEvent(generation.EventCancelled, rec, now))

	dctx, dcancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer dcancel()
	s.notifyCancel(dctx, clientID)

	writeJSON(w, http.StatusAccepted, cancelResponse{Status: string(rec.Status), ClientID: clientID})
}

func (s *Server) notifyCancel(ctx context.Context, clientID string) {
	start := time.Now()
	err := s.deps.Trigger.TriggerCancel(ctx, clientID)
	switch {
	case err == nil:
		metrics.ObserveDispatch("cancel", "ok")
	case errors.Is(err, dispatch.ErrNotConfigured):
		metrics.ObserveDispatch("cancel", "not_configured")
		s.logger.Debug("cancel not forwarded; dispatch not configured", zap.String("client_id", clientID))
	default:
		metrics.ObserveDispatch("cancel", "error")
		s.logger.Warn("cancel dispatch failed",
			zap.String("client_id", clientID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}
}
