package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LifecycleService validates and transitions event approval state.
type LifecycleService interface {
	// CreateEvent stores a new draft event for an existing provider.
	CreateEvent(ctx context.Context, event *domain.Event) error

	// GetEvent retrieves an event by ID.
	GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)

	// ListPublicEvents returns the events visible on the registration surface.
	ListPublicEvents(ctx context.Context, filter store.EventFilter) ([]*domain.Event, error)

	// SetCheckInCode replaces the attendance verification code of an event.
	// Only the bcrypt hash is stored.
	SetCheckInCode(ctx context.Context, eventID uuid.UUID, code string) error

	// Submit moves a draft to pending_approval. Every violated precondition
	// is reported in a single *domain.ValidationError.
	Submit(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)

	// Approve moves a pending event to approved. It fails with
	// *domain.ProviderLapsedError when the owning provider is not active.
	Approve(ctx context.Context, eventID, reviewerID uuid.UUID) (*domain.Event, error)

	// Reject moves a pending event to rejected, recording the reason.
	Reject(ctx context.Context, eventID, reviewerID uuid.UUID, reason string) (*domain.Event, error)

	// Begin moves an approved event to in_progress.
	Begin(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)

	// Complete moves an in_progress event to completed.
	Complete(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)

	// Archive moves a completed event to archived. Child records are kept.
	Archive(ctx context.Context, eventID uuid.UUID) (*domain.Event, error)

	// AdvanceDue begins approved events whose start date passed and completes
	// in_progress events whose end date passed.
	AdvanceDue(ctx context.Context, now time.Time) (begun, completed int, err error)
}

type lifecycleServiceImpl struct {
	stores  Stores
	tx      store.Transactor
	emitter events.EventEmitter
	logger  *slog.Logger
}

var _ LifecycleService = (*lifecycleServiceImpl)(nil)

// NewLifecycleService creates a LifecycleService. A nil emitter discards
// lifecycle events.
func NewLifecycleService(
	stores Stores,
	tx store.Transactor,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (LifecycleService, error) {
	if err := stores.Validate(); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transactor cannot be nil")
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &lifecycleServiceImpl{
		stores:  stores,
		tx:      tx,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "lifecycle_service")),
	}, nil
}

// CreateEvent implements LifecycleService.CreateEvent
func (s *lifecycleServiceImpl) CreateEvent(ctx context.Context, event *domain.Event) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if event.Status != domain.EventStatusDraft {
		return domain.NewValidationError("status", "new events must be drafts")
	}
	if _, err := s.stores.Providers.GetByID(ctx, event.ProviderID); err != nil {
		if errors.Is(err, store.ErrProviderNotFound) {
			return err
		}
		return NewServiceError("lifecycle", "create_event", "failed to load provider", err)
	}

	if err := s.stores.Events.Create(ctx, event); err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, store.ErrInvalidEntity) {
			return err
		}
		log.Error("failed to create event",
			slog.String("error", err.Error()),
			slog.String("provider_id", event.ProviderID.String()))
		return NewServiceError("lifecycle", "create_event", "failed to save event", err)
	}

	log.Info("event created",
		slog.String("event_id", event.ID.String()),
		slog.String("provider_id", event.ProviderID.String()))
	return nil
}

// GetEvent implements LifecycleService.GetEvent
func (s *lifecycleServiceImpl) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	event, err := s.stores.Events.GetByID(ctx, eventID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrEventNotFound
		}
		return nil, NewServiceError("lifecycle", "get_event", "failed to load event", err)
	}
	return event, nil
}

// ListPublicEvents implements LifecycleService.ListPublicEvents
func (s *lifecycleServiceImpl) ListPublicEvents(
	ctx context.Context,
	filter store.EventFilter,
) ([]*domain.Event, error) {
	list, err := s.stores.Events.ListPublic(ctx, filter)
	if err != nil {
		return nil, NewServiceError("lifecycle", "list_public_events", "failed to list events", err)
	}
	return list, nil
}

// SetCheckInCode implements LifecycleService.SetCheckInCode
func (s *lifecycleServiceImpl) SetCheckInCode(ctx context.Context, eventID uuid.UUID, code string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	code = strings.TrimSpace(code)
	if len(code) < 4 {
		return domain.NewValidationError("code", "must be at least 4 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return NewServiceError("lifecycle", "set_check_in_code", "failed to hash code", err)
	}

	return s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		eventsTx := s.stores.Events.WithTx(tx)
		event, err := eventsTx.GetForUpdate(ctx, eventID)
		if err != nil {
			return notFoundOr(err, store.ErrEventNotFound, "lifecycle", "set_check_in_code")
		}
		event.VerificationCodeHash = string(hash)
		event.UpdatedAt = time.Now().UTC()
		if err := eventsTx.Update(ctx, event); err != nil {
			return NewServiceError("lifecycle", "set_check_in_code", "failed to save event", err)
		}
		log.Info("check-in code updated", slog.String("event_id", eventID.String()))
		return nil
	})
}

// Submit implements LifecycleService.Submit
func (s *lifecycleServiceImpl) Submit(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	event, err := s.transition(ctx, "submit", eventID, domain.EventStatusPendingApproval,
		func(ctx context.Context, stores Stores, event *domain.Event, now time.Time) error {
			questions, err := s.quizQuestionCount(ctx, stores, event.ID)
			if err != nil {
				return err
			}
			return event.ValidateForSubmission(now, questions)
		})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeEventSubmitted, event, "")
	return event, nil
}

// Approve implements LifecycleService.Approve
func (s *lifecycleServiceImpl) Approve(ctx context.Context, eventID, reviewerID uuid.UUID) (*domain.Event, error) {
	event, err := s.transition(ctx, "approve", eventID, domain.EventStatusApproved,
		func(ctx context.Context, stores Stores, event *domain.Event, now time.Time) error {
			provider, err := stores.Providers.GetByID(ctx, event.ProviderID)
			if err != nil {
				return notFoundOr(err, store.ErrProviderNotFound, "lifecycle", "approve")
			}
			if !provider.IsActive() || provider.IsExpired(now) {
				return &domain.ProviderLapsedError{ProviderID: provider.ID, Status: provider.Status}
			}
			event.ReviewedBy = &reviewerID
			event.ReviewedAt = &now
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeEventApproved, event, "")
	return event, nil
}

// Reject implements LifecycleService.Reject
func (s *lifecycleServiceImpl) Reject(
	ctx context.Context,
	eventID, reviewerID uuid.UUID,
	reason string,
) (*domain.Event, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}

	event, err := s.transition(ctx, "reject", eventID, domain.EventStatusRejected,
		func(_ context.Context, _ Stores, event *domain.Event, now time.Time) error {
			event.RejectionReason = reason
			event.ReviewedBy = &reviewerID
			event.ReviewedAt = &now
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeEventRejected, event, reason)
	return event, nil
}

// Begin implements LifecycleService.Begin
func (s *lifecycleServiceImpl) Begin(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	event, err := s.transition(ctx, "begin", eventID, domain.EventStatusInProgress, nil)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeEventStarted, event, "")
	return event, nil
}

// Complete implements LifecycleService.Complete
func (s *lifecycleServiceImpl) Complete(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	event, err := s.transition(ctx, "complete", eventID, domain.EventStatusCompleted, nil)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeEventCompleted, event, "")
	return event, nil
}

// Archive implements LifecycleService.Archive
func (s *lifecycleServiceImpl) Archive(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	event, err := s.transition(ctx, "archive", eventID, domain.EventStatusArchived, nil)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeEventArchived, event, "")
	return event, nil
}

// AdvanceDue implements LifecycleService.AdvanceDue
// A failure on one event is logged and does not stop the others.
func (s *lifecycleServiceImpl) AdvanceDue(ctx context.Context, now time.Time) (int, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var errs []error
	begun, completed := 0, 0

	due, err := s.stores.Events.ListDueToBegin(ctx, now)
	if err != nil {
		return 0, 0, NewServiceError("lifecycle", "advance_due", "failed to list events due to begin", err)
	}
	for _, e := range due {
		if _, err := s.Begin(ctx, e.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			log.Error("failed to begin event",
				slog.String("error", err.Error()),
				slog.String("event_id", e.ID.String()))
			errs = append(errs, err)
			continue
		}
		begun++
	}

	due, err = s.stores.Events.ListDueToComplete(ctx, now)
	if err != nil {
		errs = append(errs, NewServiceError("lifecycle", "advance_due", "failed to list events due to complete", err))
		return begun, completed, errors.Join(errs...)
	}
	for _, e := range due {
		if _, err := s.Complete(ctx, e.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				continue
			}
			log.Error("failed to complete event",
				slog.String("error", err.Error()),
				slog.String("event_id", e.ID.String()))
			errs = append(errs, err)
			continue
		}
		completed++
	}

	if begun > 0 || completed > 0 {
		log.Info("advanced due events", slog.Int("begun", begun), slog.Int("completed", completed))
	}
	return begun, completed, errors.Join(errs...)
}

type transitionCheck func(ctx context.Context, stores Stores, event *domain.Event, now time.Time) error

// transition locks the event, checks the state machine and any extra
// preconditions, then persists the new status. Nothing is written when a
// check fails.
func (s *lifecycleServiceImpl) transition(
	ctx context.Context,
	operation string,
	eventID uuid.UUID,
	to domain.EventStatus,
	check transitionCheck,
) (*domain.Event, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var event *domain.Event
	err := s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stores := s.stores.WithTx(tx)
		e, err := stores.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return notFoundOr(err, store.ErrEventNotFound, "lifecycle", operation)
		}

		if !e.CanTransitionTo(to) {
			return &domain.TransitionError{EventID: e.ID, From: e.Status, To: to}
		}

		now := time.Now().UTC()
		if check != nil {
			if err := check(ctx, stores, e, now); err != nil {
				return err
			}
		}
		if err := e.TransitionTo(to, now); err != nil {
			return err
		}
		if err := stores.Events.Update(ctx, e); err != nil {
			return NewServiceError("lifecycle", operation, "failed to save event", err)
		}
		event = e
		return nil
	})
	if err != nil {
		log.Debug("event transition refused",
			slog.String("operation", operation),
			slog.String("event_id", eventID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	log.Info("event transitioned",
		slog.String("operation", operation),
		slog.String("event_id", event.ID.String()),
		slog.String("status", string(event.Status)))
	return event, nil
}

func (s *lifecycleServiceImpl) quizQuestionCount(ctx context.Context, stores Stores, eventID uuid.UUID) (int, error) {
	quiz, err := stores.Quizzes.GetByEventID(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrQuizNotFound) {
			return 0, nil
		}
		return 0, NewServiceError("lifecycle", "submit", "failed to load quiz", err)
	}
	return len(quiz.Questions), nil
}

// emit publishes a committed lifecycle change. Handler failures are logged
// only; the transition already happened.
func (s *lifecycleServiceImpl) emit(ctx context.Context, t events.Type, event *domain.Event, reason string) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	le, err := events.NewLifecycleEvent(t, event.ID, events.EventReviewed{
		EventID:    event.ID,
		ProviderID: event.ProviderID,
		Reason:     reason,
	})
	if err != nil {
		log.Error("failed to build lifecycle event", slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(ctx, le); err != nil {
		log.Error("failed to emit lifecycle event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(t)),
			slog.String("event_id", event.ID.String()))
	}
}

// notFoundOr returns notFound for any not-found error and wraps the rest.
func notFoundOr(err, notFound error, service, operation string) error {
	if store.IsNotFoundError(err) {
		return notFound
	}
	return NewServiceError(service, operation, "store failure", err)
}
