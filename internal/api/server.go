// Package api exposes the HTTP interface for the portal service.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/clock"
	"github.com/JakeFAU/sitegen-portal/internal/dispatch"
	"github.com/JakeFAU/sitegen-portal/internal/hash/hmacsha256"
	"github.com/JakeFAU/sitegen-portal/internal/metrics"
	"github.com/JakeFAU/sitegen-portal/internal/progress"
	"github.com/JakeFAU/sitegen-portal/internal/ratelimit"
	"github.com/JakeFAU/sitegen-portal/internal/store"
)

// GenerationTrigger starts and cancels runs in the external workflow.
type GenerationTrigger interface {
	TriggerGeneration(ctx context.Context, payload dispatch.GenerationPayload) error
	TriggerCancel(ctx context.Context, clientID string) error
}

// IDGenerator mints client IDs from a business name.
type IDGenerator interface {
	NewClientID(businessName string) (string, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store    store.StatusStore
	Events   progress.Emitter
	Trigger  GenerationTrigger
	IDs      IDGenerator
	Clock    clock.Clock
	Verifier *hmacsha256.Verifier
	// Limiter bounds POST /generate; nil disables rate limiting.
	Limiter *ratelimit.Limiter
	// Ready backs /readyz; nil means always ready.
	Ready func(context.Context) error
}

// Config tunes handler behavior.
type Config struct {
	// WebhookURL is handed to the workflow so it can report back.
	WebhookURL     string
	RequestTimeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers; otherwise
	// callers can pick their own rate-limit key.
	TrustProxy bool
}

const (
	maxWebhookBody  = 1 << 20
	maxGenerateBody = 64 << 10
	storeTimeout    = 3 * time.Second
	dispatchTimeout = 15 * time.Second
)

// Server wires HTTP handlers to the status store and dispatch client.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg Config, logger *zap.Logger) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("status store is required")
	}
	if deps.Trigger == nil {
		return nil, errors.New("generation trigger is required")
	}
	if deps.IDs == nil {
		return nil, errors.New("id generator is required")
	}
	if deps.Events == nil {
		deps.Events = progress.NopEmitter{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Verifier == nil {
		deps.Verifier = hmacsha256.NewVerifier("", false)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	if !deps.Verifier.Enabled() {
		logger.Warn("webhook secret not configured; signature checks rely on allow_unsigned")
	}

	s := &Server{deps: deps, cfg: cfg, logger: logger}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Webhook-Signature", "X-Hub-Signature-256", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/webhooks/status", func(r chi.Router) {
		r.Post("/", s.receiveWebhook)
		r.Get("/", s.queryStatus)
		r.Options("/", s.options)
	})
	r.Route("/status/{clientId}", func(r chi.Router) {
		r.Get("/", s.getStatus)
		r.Options("/", s.options)
		r.Post("/cancel", s.cancelGeneration)
	})

	var limit []func(http.Handler) http.Handler
	if deps.Limiter != nil {
		limit = append(limit, deps.Limiter.Middleware(func(*http.Request) {
			metrics.ObserveRateLimited("/generate")
		}))
	}
	r.With(limit...).Post("/generate", s.generate)
	r.Options("/generate", s.options)

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// options answers bare OPTIONS requests. Preflights carrying an Origin are
// answered by the CORS middleware before reaching here.
func (s *Server) options(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-Webhook-Signature, X-Hub-Signature-256")
	w.WriteHeader(http.StatusOK)
}
