package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <client-id>",
		Short: "Print the current status of a generation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, api, err := clientFor(cmd)
			if err != nil {
				return err
			}
			rec, err := api.Status(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetch status: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <client-id>",
		Short: "Ask the portal to cancel a generation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, api, err := clientFor(cmd)
			if err != nil {
				return err
			}
			if err := api.Cancel(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("cancel %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancellation requested for %s\n", args[0])
			return nil
		},
	}
}
