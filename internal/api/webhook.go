package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/hash/hmacsha256"
	"github.com/JakeFAU/sitegen-portal/internal/metrics"
	"github.com/JakeFAU/sitegen-portal/internal/progress"
	"github.com/JakeFAU/sitegen-portal/internal/validation"
)

// Signature headers, in lookup order.
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderHubSignature     = "X-Hub-Signature-256"
)

type webhookResponse struct {
	Status   string `json:"status"`
	ClientID string `json:"clientId"`
}

// receiveWebhook handles POST /webhooks/status. The raw body is verified
// before it is decoded; nothing is stored unless both steps succeed.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.ObserveWebhook("too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		metrics.ObserveWebhook("invalid")
		writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	if err := s.deps.Verifier.Verify(signatureHeader(r), body); err != nil {
		s.rejectSignature(w, r, err)
		return
	}

	evt, err := generation.DecodeWebhookEvent(body)
	if err != nil {
		metrics.ObserveWebhook("invalid")
		writeError(w, http.StatusBadRequest, "Invalid webhook payload", decodeDetails(err)...)
		return
	}

	now := s.deps.Clock.Now()
	rec := generation.FromEvent(evt, now)
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	if err := s.deps.Store.Put(ctx, rec); err != nil {
		s.logger.Error("store webhook update failed",
			zap.String("client_id", rec.ClientID),
			zap.Error(err),
		)
		metrics.ObserveWebhook("error")
		writeError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	s.deps.Events.Emit(progress.NewEvent(evt.Status, rec, now))
	metrics.ObserveWebhook("accepted")
	writeJSON(w, http.StatusOK, webhookResponse{Status: "ok", ClientID: rec.ClientID})
}

func (s *Server) rejectSignature(w http.ResponseWriter, r *http.Request, err error) {
	reason := "mismatch"
	switch {
	case errors.Is(err, hmacsha256.ErrMissingSignature):
		reason = "missing"
	case errors.Is(err, hmacsha256.ErrUnsignedRejected):
		reason = "no_secret"
	}
	metrics.ObserveSignatureFailure(reason)
	metrics.ObserveWebhook("unauthorized")
	s.logger.Warn("webhook signature rejected",
		zap.String("reason", reason),
		zap.String("request_id", RequestID(r.Context())),
	)
	writeError(w, http.StatusUnauthorized, "Invalid signature")
}

func signatureHeader(r *http.Request) string {
	if sig := r.Header.Get(HeaderWebhookSignature); sig != "" {
		return sig
	}
	return r.Header.Get(HeaderHubSignature)
}

func decodeDetails(err error) []string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Messages()
	}
	return []string{strings.TrimPrefix(err.Error(), generation.ErrInvalidEvent.Error()+": ")}
}
