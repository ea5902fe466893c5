// Package cmd holds the Cobra commands of the portal binary: the HTTP relay
// itself and a small client for starting and following generation runs.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/config"
	"github.com/JakeFAU/sitegen-portal/internal/logging"
	"github.com/JakeFAU/sitegen-portal/internal/poller"
)

// envKeyType is the key for storing the loaded environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// runEnv is what every subcommand receives from the root pre-run hook.
type runEnv struct {
	cfg    config.Config
	logger *zap.Logger
}

// newAPI builds the portal client used by the client-side commands. It's a
// variable so tests can inject a mock.
var newAPI = func(cfg config.PollerConfig, logger *zap.Logger) (poller.API, error) {
	return poller.NewClient(poller.ClientConfig{
		BaseURL:        cfg.BaseURL,
		Timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries:     cfg.MaxRetries,
		BackoffInitial: time.Duration(cfg.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
	}, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Status relay for website generation runs.",
		Long: `portal starts website generation workflows through repository dispatch,
receives their progress webhooks, and serves normalized status snapshots to
polling clients. The client commands (generate, status, watch, cancel) talk
to a running portal over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Config and logger are loaded once here, before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
				cfg.Poller.BaseURL = baseURL
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &runEnv{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, err := envFrom(cmd); err == nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.PersistentFlags().String("base-url", "", "portal address for client commands (overrides poller.base_url)")

	cmd.AddCommand(
		newServeCmd(),
		newSweepCmd(),
		newGenerateCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newCancelCmd(),
	)
	return cmd
}

func envFrom(cmd *cobra.Command) (*runEnv, error) {
	if ctx := cmd.Context(); ctx != nil {
		if rt, ok := ctx.Value(envKey).(*runEnv); ok && rt != nil {
			return rt, nil
		}
	}
	return nil, errors.New("command environment not initialized")
}

// clientFor resolves the portal client for a client-side command.
func clientFor(cmd *cobra.Command) (*runEnv, poller.API, error) {
	rt, err := envFrom(cmd)
	if err != nil {
		return nil, nil, err
	}
	api, err := newAPI(rt.cfg.Poller, rt.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init portal client: %w", err)
	}
	return rt, api, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
