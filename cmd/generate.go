package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/validation"
)

func newGenerateCmd() *cobra.Command {
	var (
		req   generation.Request
		watch bool
		fopts followOptions
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Start a website generation run",
		Example: `  portal generate --business-name "Acme Bakery" --email owner@acme.test \
    --industry food --service bread --service cakes --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req = req.Normalize()
			if err := req.Validate(); err != nil {
				var verr *validation.Error
				if errors.As(err, &verr) {
					for _, msg := range verr.Messages() {
						fmt.Fprintln(cmd.ErrOrStderr(), "  -", msg)
					}
				}
				return err
			}

			rt, api, err := clientFor(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !watch {
				resp, err := api.Generate(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("generate: %w", err)
				}
				if fopts.asJSON {
					return printJSON(out, resp)
				}
				fmt.Fprintf(out, "client id:  %s\n", resp.ClientID)
				fmt.Fprintf(out, "status url: %s\n", resp.StatusURL)
				if resp.EstimatedTime != "" {
					fmt.Fprintf(out, "estimated:  %s\n", resp.EstimatedTime)
				}
				return nil
			}

			p := fopts.newPoller(rt, api, out)
			id, err := p.Start(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			rt.logger.Info("generation started", zap.String("client_id", id))
			return follow(cmd.Context(), p, fopts, out, rt.logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.BusinessName, "business-name", "", "business name (required)")
	f.StringVar(&req.Email, "email", "", "contact email (required)")
	f.StringVar(&req.Industry, "industry", "", "industry (required)")
	f.StringSliceVar(&req.Services, "service", nil, "service offered; repeat or comma-separate (at least one)")
	f.StringVar(&req.Description, "description", "", "business description")
	f.StringVar(&req.TargetAudience, "target-audience", "", "target audience")
	f.StringVar(&req.Location, "location", "", "location")
	f.StringVar(&req.Phone, "phone", "", "phone number")
	f.StringVar(&req.Website, "website", "", "existing website URL")
	f.StringVar(&req.LogoURL, "logo-url", "", "logo image URL")
	f.StringVar(&req.ColorScheme, "color-scheme", "", "preferred color scheme")
	f.StringVar(&req.Style, "style", "", "preferred visual style")
	f.BoolVar(&watch, "watch", false, "follow the run until it finishes")
	fopts.bind(cmd)
	return cmd
}
