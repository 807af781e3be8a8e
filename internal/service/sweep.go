package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/task"
)

// SweepService runs the periodic maintenance pass: due events begin or
// complete and expired providers lapse.
type SweepService struct {
	lifecycle LifecycleService
	providers ProviderService
	now       func() time.Time
	logger    *slog.Logger
}

var _ task.Sweeper = (*SweepService)(nil)

// NewSweepService creates a SweepService.
func NewSweepService(lifecycle LifecycleService, providers ProviderService, logger *slog.Logger) *SweepService {
	if lifecycle == nil {
		panic("lifecycle cannot be nil")
	}
	if providers == nil {
		panic("providers cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepService{
		lifecycle: lifecycle,
		providers: providers,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With(slog.String("component", "sweep_service")),
	}
}

// Sweep implements task.Sweeper. Both passes always run.
func (s *SweepService) Sweep(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	begun, completed, eventsErr := s.lifecycle.AdvanceDue(ctx, now)
	lapsed, providersErr := s.providers.SweepCompliance(ctx, now)

	log.Info("sweep finished",
		slog.Int("events_begun", begun),
		slog.Int("events_completed", completed),
		slog.Int("providers_lapsed", lapsed))
	return errors.Join(eventsErr, providersErr)
}
