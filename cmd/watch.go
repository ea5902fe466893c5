package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/generation"
	"github.com/JakeFAU/sitegen-portal/internal/poller"
)

// followOptions are the flags shared by watch and generate --watch.
type followOptions struct {
	interval          time.Duration
	cancelOnInterrupt bool
	asJSON            bool
}

func (o *followOptions) bind(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&o.interval, "interval", 0, "poll interval (defaults to poller.interval)")
	cmd.Flags().BoolVar(&o.cancelOnInterrupt, "cancel-on-interrupt", false, "cancel the run on Ctrl-C instead of detaching")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the final record as JSON")
}

func (o *followOptions) newPoller(rt *runEnv, api poller.API, out io.Writer) *poller.Poller {
	interval := o.interval
	if interval <= 0 {
		interval = rt.cfg.Poller.Interval
	}
	return poller.New(api, poller.Options{
		Interval: interval,
		OnUpdate: func(rec generation.ProgressRecord) {
			fmt.Fprintln(out, progressLine(rec))
		},
		Logger: rt.logger.Named("poller"),
	})
}

func newWatchCmd() *cobra.Command {
	var opts followOptions
	cmd := &cobra.Command{
		Use:   "watch <client-id>",
		Short: "Follow a generation run until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, api, err := clientFor(cmd)
			if err != nil {
				return err
			}
			p := opts.newPoller(rt, api, cmd.OutOrStdout())
			if err := p.Watch(args[0]); err != nil {
				return err
			}
			return follow(cmd.Context(), p, opts, cmd.OutOrStdout(), rt.logger)
		},
	}
	opts.bind(cmd)
	return cmd
}

// follow waits for p to finish and prints the final record. On SIGINT or
// SIGTERM it either cancels the run and keeps waiting for the cancelled
// record, or stops polling and leaves the run alone.
func follow(ctx context.Context, p *poller.Poller, opts followOptions, out io.Writer, logger *zap.Logger) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	rec, err := p.Wait(sigCtx)
	aborted := sigCtx.Err() != nil && isContextErr(err)
	stop()

	if aborted {
		if ctx.Err() != nil || !opts.cancelOnInterrupt {
			p.Stop()
			fmt.Fprintf(out, "stopped watching %s\n", p.ClientID())
			return poller.ErrStopped
		}
		cancelCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		cerr := p.Cancel(cancelCtx)
		cancel()
		if cerr != nil {
			logger.Warn("cancel request failed", zap.String("client_id", p.ClientID()), zap.Error(cerr))
			p.Stop()
			return fmt.Errorf("cancel %s: %w", p.ClientID(), cerr)
		}
		logger.Info("cancellation requested", zap.String("client_id", p.ClientID()))
		if rec, err = p.Wait(ctx); isContextErr(err) {
			p.Stop()
			return err
		}
	}

	if rec.ClientID != "" {
		if opts.asJSON {
			if jerr := printJSON(out, rec); jerr != nil {
				return jerr
			}
		} else {
			printRecord(out, rec)
		}
	}
	return err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
