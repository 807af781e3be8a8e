package task

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper performs one pass of periodic maintenance
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Scheduler runs a Sweeper on a fixed interval until stopped. A sweep that
// fails is logged and retried on the next tick.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive interval defaults to one minute.
func NewScheduler(sweeper Sweeper, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   log.With(slog.String("component", "scheduler")),
	}
}

// Start runs one sweep immediately and then one per interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	if err := s.sweeper.Sweep(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("sweep failed", "error", err)
		return
	}
	s.logger.Debug("sweep finished", "duration_ms", time.Since(start).Milliseconds())
}
