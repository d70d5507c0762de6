// Package scheduler refreshes the project cache on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Refresher is what the scheduler drives on each tick.
type Refresher interface {
	SyncAll(ctx context.Context)
}

type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger
}

func NewScheduler(refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		logger:    logger,
	}
}

// Start refreshes once immediately and then on every tick until the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	s.refresher.SyncAll(syncCtx)
}
