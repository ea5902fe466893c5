package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/app"
	"github.com/JakeFAU/sitegen-portal/internal/config"
)

// service is the part of *app.App the serve command drives.
type service interface {
	Handler() http.Handler
	Start()
	Close(ctx context.Context) error
}

// newService is the application factory. It's a variable so tests can swap in
// a mock container.
var newService = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (service, error) {
	return app.New(ctx, cfg, logger, app.Options{})
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := envFrom(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", rt.cfg.Server.Port))
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(ctx, ln, rt.cfg, rt.logger)
		},
	}
}

// serve runs the relay on ln until ctx ends, then drains in-flight requests
// and closes the container within the configured shutdown timeout.
func serve(ctx context.Context, ln net.Listener, cfg config.Config, logger *zap.Logger) error {
	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to initialize application services: %w", err)
	}

	srv := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	svc.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		logger.Error("http server error", zap.Error(serveErr))
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		serveErr = errors.Join(serveErr, err)
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Error("service close error", zap.Error(err))
		serveErr = errors.Join(serveErr, err)
	}
	logger.Info("shutdown complete")
	return serveErr
}
