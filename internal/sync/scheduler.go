package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// Scheduler runs cycles on a fixed cadence. Cycles execute synchronously in
// the loop, so two can never overlap within one process; the interval is
// expected to be far longer than one cycle's duration.
type Scheduler struct {
	engine     *Engine
	interval   time.Duration
	runOnStart bool
}

// NewScheduler creates a scheduler for the given engine.
func NewScheduler(engine *Engine, interval time.Duration, runOnStart bool) *Scheduler {
	return &Scheduler{
		engine:     engine,
		interval:   interval,
		runOnStart: runOnStart,
	}
}

// Run blocks until the context is cancelled, running one cycle per tick.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("Scheduler started",
		zap.Duration("interval", s.interval),
		zap.Bool("run_on_start", s.runOnStart))

	if s.runOnStart {
		s.runCycle(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle executes one cycle. A panicking cycle must not take the scheduler
// loop down with it; the next tick gets a fresh attempt.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer utils.RecoverWithLog(ctx, "sync cycle")

	if err := s.engine.RunCycle(ctx); err != nil {
		logger.FromContext(ctx).Warn("Sync cycle finished with errors", zap.Error(err))
	}
}
