package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// ProviderInput describes a provider to register.
type ProviderInput struct {
	Name           string
	ProviderNumber string
	ContactEmail   string
}

// ProviderService maintains provider accreditation.
type ProviderService interface {
	// CreateProvider registers an active provider.
	CreateProvider(ctx context.Context, in ProviderInput) (*domain.Provider, error)

	// GetProvider retrieves a provider by ID.
	GetProvider(ctx context.Context, providerID uuid.UUID) (*domain.Provider, error)

	// ListEvents returns every event of a provider.
	ListEvents(ctx context.Context, providerID uuid.UUID) ([]*domain.Event, error)

	// Renew reactivates a provider with a fresh approval period.
	Renew(ctx context.Context, providerID uuid.UUID) (*domain.Provider, error)

	// SweepCompliance marks active providers whose approval expired as lapsed
	// and reports how many changed.
	SweepCompliance(ctx context.Context, now time.Time) (int, error)
}

type providerServiceImpl struct {
	providers store.ProviderStore
	events    store.EventStore
	emitter   events.EventEmitter
	validity  time.Duration
	logger    *slog.Logger
}

var _ ProviderService = (*providerServiceImpl)(nil)

// NewProviderService creates a ProviderService. validity is the length of an
// approval period; zero uses domain.DefaultApprovalValidity.
func NewProviderService(
	providers store.ProviderStore,
	eventStore store.EventStore,
	emitter events.EventEmitter,
	validity time.Duration,
	logger *slog.Logger,
) (ProviderService, error) {
	if providers == nil {
		return nil, fmt.Errorf("providers store cannot be nil")
	}
	if eventStore == nil {
		return nil, fmt.Errorf("events store cannot be nil")
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if validity <= 0 {
		validity = domain.DefaultApprovalValidity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &providerServiceImpl{
		providers: providers,
		events:    eventStore,
		emitter:   emitter,
		validity:  validity,
		logger:    logger.With(slog.String("component", "provider_service")),
	}, nil
}

// CreateProvider implements ProviderService.CreateProvider
func (s *providerServiceImpl) CreateProvider(ctx context.Context, in ProviderInput) (*domain.Provider, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	p, err := domain.NewProvider(in.Name, in.ProviderNumber, in.ContactEmail, time.Now(), s.validity)
	if err != nil {
		return nil, err
	}
	if err := s.providers.Create(ctx, p); err != nil {
		if store.IsDuplicateError(err) || errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, NewServiceError("provider", "create", "failed to save provider", err)
	}

	log.Info("provider created",
		slog.String("provider_id", p.ID.String()),
		slog.Time("expires_at", p.ExpiresAt))
	return p, nil
}

// GetProvider implements ProviderService.GetProvider
func (s *providerServiceImpl) GetProvider(ctx context.Context, providerID uuid.UUID) (*domain.Provider, error) {
	p, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrProviderNotFound, "provider", "get")
	}
	return p, nil
}

// ListEvents implements ProviderService.ListEvents
func (s *providerServiceImpl) ListEvents(ctx context.Context, providerID uuid.UUID) ([]*domain.Event, error) {
	if _, err := s.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}
	list, err := s.events.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, NewServiceError("provider", "list_events", "failed to list events", err)
	}
	return list, nil
}

// Renew implements ProviderService.Renew
func (s *providerServiceImpl) Renew(ctx context.Context, providerID uuid.UUID) (*domain.Provider, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	p, err := s.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	p.Renew(time.Now(), s.validity)
	if err := s.providers.Update(ctx, p); err != nil {
		return nil, notFoundOr(err, store.ErrProviderNotFound, "provider", "renew")
	}

	log.Info("provider renewed",
		slog.String("provider_id", p.ID.String()),
		slog.Time("expires_at", p.ExpiresAt))
	return p, nil
}

// SweepCompliance implements ProviderService.SweepCompliance
func (s *providerServiceImpl) SweepCompliance(ctx context.Context, now time.Time) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	expired, err := s.providers.ListExpired(ctx, now)
	if err != nil {
		return 0, NewServiceError("provider", "sweep_compliance", "failed to list expired providers", err)
	}

	var errs []error
	lapsed := 0
	for _, p := range expired {
		if !p.IsActive() {
			continue
		}
		p.MarkLapsed(now)
		if err := s.providers.Update(ctx, p); err != nil {
			log.Error("failed to mark provider lapsed",
				slog.String("error", err.Error()),
				slog.String("provider_id", p.ID.String()))
			errs = append(errs, err)
			continue
		}
		lapsed++
		log.Warn("provider accreditation lapsed",
			slog.String("provider_id", p.ID.String()),
			slog.Time("expired_at", p.ExpiresAt))

		le, err := events.NewLifecycleEvent(events.TypeProviderLapsed, p.ID,
			events.ProviderLapsed{ProviderID: p.ID, ExpiresAt: p.ExpiresAt})
		if err == nil {
			err = s.emitter.EmitEvent(ctx, le)
		}
		if err != nil {
			log.Error("failed to emit provider lapsed event", slog.String("error", err.Error()))
		}
	}
	return lapsed, errors.Join(errs...)
}
