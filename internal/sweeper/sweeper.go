// Package sweeper periodically removes expired status records.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/clock"
	"github.com/JakeFAU/sitegen-portal/internal/metrics"
)

// Store is the subset of store.StatusStore the sweeper needs.
type Store interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Sweeper runs Store.Sweep on a cron schedule.
type Sweeper struct {
	store    Store
	clock    clock.Clock
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
	cron     *cron.Cron
}

// New builds a Sweeper that fires every interval.
func New(store Store, interval time.Duration, clk clock.Clock, logger *zap.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if interval <= 0 {
		return nil, errors.New("sweep interval must be > 0")
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		store:    store,
		clock:    clk,
		logger:   logger.Named("sweeper"),
		interval: interval,
		timeout:  30 * time.Second,
		cron:     cron.New(),
	}
	schedule := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return s, nil
}

// Start begins the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the schedule and waits for a running sweep or ctx expiry.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce sweeps immediately and reports how many records were removed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	removed, err := s.store.Sweep(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("sweep status store: %w", err)
	}
	metrics.ObserveSweep(removed)
	return removed, nil
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	removed, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("expired records removed", zap.Int("removed", removed))
	}
}
