// Package app initializes and holds the long-lived services of the portal,
// acting as the dependency container for the serve command.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/api"
	"github.com/JakeFAU/sitegen-portal/internal/clock"
	"github.com/JakeFAU/sitegen-portal/internal/config"
	"github.com/JakeFAU/sitegen-portal/internal/dispatch"
	"github.com/JakeFAU/sitegen-portal/internal/hash/hmacsha256"
	"github.com/JakeFAU/sitegen-portal/internal/id/clientid"
	"github.com/JakeFAU/sitegen-portal/internal/metrics"
	"github.com/JakeFAU/sitegen-portal/internal/progress"
	"github.com/JakeFAU/sitegen-portal/internal/progress/sinks"
	pubsubpublisher "github.com/JakeFAU/sitegen-portal/internal/publisher/pubsub"
	"github.com/JakeFAU/sitegen-portal/internal/ratelimit"
	"github.com/JakeFAU/sitegen-portal/internal/storage/gcs"
	"github.com/JakeFAU/sitegen-portal/internal/storage/local"
	"github.com/JakeFAU/sitegen-portal/internal/storage/memory"
	"github.com/JakeFAU/sitegen-portal/internal/storage/postgres"
	"github.com/JakeFAU/sitegen-portal/internal/store"
	"github.com/JakeFAU/sitegen-portal/internal/sweeper"
)

// Options override pieces of the container, mainly for tests.
type Options struct {
	Clock clock.Clock
	// Registerer receives the progress collectors. Defaults to the global
	// Prometheus registerer.
	Registerer prometheus.Registerer
	// Publisher replaces the Pub/Sub publisher when set.
	Publisher sinks.Publisher
	// Trigger replaces the dispatch client when set.
	Trigger api.GenerationTrigger
}

// App holds every service the HTTP server depends on.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   store.StatusStore
	hub     *progress.Hub
	sweeper *sweeper.Sweeper
	server  *api.Server
	closers []func(context.Context) error
}

// New builds the container from cfg. It fails fast when a configured backend
// cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.runClosers(closeCtx)
		}
	}()

	statusStore, ready, err := a.buildStore(ctx, opts.Clock)
	if err != nil {
		return nil, err
	}
	a.store = statusStore

	hubSinks, err := a.buildSinks(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.Progress.MaxBatchWait,
		Logger:         logger.Named("progress"),
	}, hubSinks...)
	a.closers = append(a.closers, a.hub.Close)

	trigger := opts.Trigger
	if trigger == nil {
		client := dispatch.New(dispatch.Config{
			APIURL:          cfg.Dispatch.APIURL,
			Token:           cfg.Dispatch.Token,
			Owner:           cfg.Dispatch.Owner,
			Repo:            cfg.Dispatch.Repo,
			EventType:       cfg.Dispatch.EventType,
			CancelEventType: cfg.Dispatch.CancelEventType,
			Timeout:         time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second,
			MaxRetries:      cfg.Dispatch.MaxRetries,
		}, logger)
		if !client.Configured() {
			logger.Warn("dispatch token, owner, or repo missing; POST /generate will answer 503")
		}
		trigger = client
	}

	a.sweeper, err = sweeper.New(statusStore, cfg.Store.SweepInterval, opts.Clock, logger)
	if err != nil {
		return nil, fmt.Errorf("init sweeper: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.GenerateRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{RPS: cfg.RateLimit.GenerateRPS, Burst: cfg.RateLimit.GenerateBurst})
	}
	a.server, err = api.NewServer(api.Deps{
		Store:    statusStore,
		Events:   a.hub,
		Trigger:  trigger,
		IDs:      clientid.New(opts.Clock),
		Clock:    opts.Clock,
		Verifier: hmacsha256.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.AllowUnsigned),
		Limiter:  limiter,
		Ready:    ready,
	}, api.Config{
		WebhookURL:     cfg.Site.WebhookURL(),
		RequestTimeout: cfg.RequestTimeout(),
		TrustProxy:     cfg.Server.TrustProxy,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init api server: %w", err)
	}

	ok = true
	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Backend),
		zap.String("archive", cfg.Archive.Backend),
		zap.Bool("pubsub", cfg.PubSub.ProjectID != "" || opts.Publisher != nil),
	)
	return a, nil
}

func (a *App) buildStore(ctx context.Context, clk clock.Clock) (store.StatusStore, func(context.Context) error, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		return memory.NewStatusStore(a.cfg.Store.TTL, clk), nil, nil
	case config.BackendPostgres:
		pg, err := postgres.NewStatusStore(ctx, postgres.Config{
			DSN:      a.cfg.Store.Postgres.DSN,
			Table:    a.cfg.Store.Postgres.Table,
			TTL:      a.cfg.Store.TTL,
			MaxConns: a.cfg.Store.Postgres.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			pg.Close()
			return nil
		})
		if a.cfg.Store.Postgres.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, nil, fmt.Errorf("migrate status table: %w", err)
			}
		}
		return pg, pg.Ping, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", a.cfg.Store.Backend)
	}
}

func (a *App) buildSinks(ctx context.Context, opts Options) ([]progress.Sink, error) {
	promSink, err := sinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return nil, err
	}
	out := []progress.Sink{sinks.NewLogSink(a.logger.Named("events")), promSink}

	publisher := opts.Publisher
	if publisher == nil && a.cfg.PubSub.ProjectID != "" {
		ps, err := pubsubpublisher.Connect(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return ps.Close() })
		publisher = ps
	}
	if publisher != nil {
		pubSink, err := sinks.NewPublisherSink(publisher, a.cfg.PubSub.TopicName, a.logger.Named("publisher"))
		if err != nil {
			return nil, fmt.Errorf("init publisher sink: %w", err)
		}
		out = append(out, pubSink)
	}

	blobs, err := a.buildArchive(ctx)
	if err != nil {
		return nil, err
	}
	if blobs != nil {
		archive, err := sinks.NewArchiveSink(blobs, a.cfg.Archive.Prefix, a.logger.Named("archive"))
		if err != nil {
			return nil, fmt.Errorf("init archive sink: %w", err)
		}
		out = append(out, archive)
	}
	return out, nil
}

func (a *App) buildArchive(ctx context.Context) (sinks.BlobStore, error) {
	switch a.cfg.Archive.Backend {
	case "", config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	case config.BackendLocal:
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return blobs, nil
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		return blobs, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", a.cfg.Archive.Backend)
	}
}

// Handler returns the HTTP handler for the portal API.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Store exposes the status store.
func (a *App) Store() store.StatusStore {
	return a.store
}

// Sweeper exposes the expiry sweeper.
func (a *App) Sweeper() *sweeper.Sweeper {
	return a.sweeper
}

// Start launches background work.
func (a *App) Start() {
	a.sweeper.Start()
}

// Close stops background work, flushes pending progress events, and closes
// backends in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("shutting down application services")
	var errs []error
	if a.sweeper != nil {
		if err := a.sweeper.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop sweeper: %w", err))
		}
	}
	if err := a.runClosers(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) runClosers(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
