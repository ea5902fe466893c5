package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/sitegen-portal/internal/app"
)

// newSweepCmd runs one expiry pass against the configured store and exits.
// It is meant for cron jobs against a shared Postgres store.
func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired status records once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := envFrom(cmd)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), rt.cfg, rt.logger, app.Options{})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			removed, sweepErr := a.Sweeper().RunOnce(cmd.Context())
			if err := a.Close(cmd.Context()); err != nil && sweepErr == nil {
				sweepErr = err
			}
			if sweepErr != nil {
				return fmt.Errorf("sweep: %w", sweepErr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired records\n", removed)
			return nil
		},
	}
}
