package app

import (
	"context"
	"log/slog"
	"time"
)

// Ticker is the scheduler's target. The engine implements it.
type Ticker interface {
	Tick(now time.Time)
}

// Scheduler drives the round state machine with a coarse fixed-interval
// poll instead of a precise per-round timer. The polling model is
// intentional: it tolerates clock drift and lets one loop cover both
// round boundaries and bot checkpoints. The clock is injectable so
// tests can simulate boundaries without sleeping.
type Scheduler struct {
	clock    Clock
	interval time.Duration
	target   Ticker
	logger   *slog.Logger
}

// NewScheduler creates a scheduler polling at the given interval.
func NewScheduler(clock Clock, interval time.Duration, target Ticker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		clock:    clock,
		interval: interval,
		target:   target,
		logger:   logger,
	}
}

// Run polls until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler running", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.target.Tick(s.clock.Now())
		}
	}
}
