package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegisterInput identifies the participant signing up for an event.
type RegisterInput struct {
	EventID       uuid.UUID
	ParticipantID uuid.UUID
	Name          string
	BACBID        string
	Email         string
}

// FeedbackInput is a post-event survey submission.
type FeedbackInput struct {
	RegistrationID   uuid.UUID
	OverallRating    int
	InstructorRating int
	ContentRating    int
	RelevanceRating  int
	ApplicationPlan  string
	Comments         string
}

// ParticipationService records everything a participant accumulates against
// an event: registration, attendance and feedback.
type ParticipationService interface {
	// Register signs a participant up for a publicly visible event. A repeat
	// registration returns the existing one together with ErrAlreadyRegistered.
	Register(ctx context.Context, in RegisterInput) (*domain.Registration, error)

	// GetRegistration retrieves a registration by ID.
	GetRegistration(ctx context.Context, registrationID uuid.UUID) (*domain.Registration, error)

	// FindRegistration retrieves the participant's registration for an event.
	FindRegistration(ctx context.Context, eventID, participantID uuid.UUID) (*domain.Registration, error)

	// ListRegistrations returns a participant's registrations.
	ListRegistrations(ctx context.Context, participantID uuid.UUID) ([]*domain.Registration, error)

	// Cancel flags a registration as cancelled.
	Cancel(ctx context.Context, registrationID uuid.UUID) (*domain.Registration, error)

	// CheckIn confirms attendance at an in-person or synchronous event using
	// the event's verification code.
	CheckIn(ctx context.Context, registrationID uuid.UUID, code string) (*domain.Attendance, error)

	// CheckOut records departure after a check-in.
	CheckOut(ctx context.Context, registrationID uuid.UUID) (*domain.Attendance, error)

	// RecordProgress raises the completion percentage of an asynchronous event.
	RecordProgress(ctx context.Context, registrationID uuid.UUID, percentage int) (*domain.Attendance, error)

	// ConfirmAttendance lets an administrator confirm attendance directly.
	// For an asynchronous event it certifies full completion.
	ConfirmAttendance(ctx context.Context, registrationID, adminID uuid.UUID) (*domain.Attendance, error)

	// SubmitFeedback stores the single feedback record of a registration.
	SubmitFeedback(ctx context.Context, in FeedbackInput) (*domain.Feedback, error)

	// FeedbackSummary averages the feedback submitted for an event.
	FeedbackSummary(ctx context.Context, eventID uuid.UUID) (domain.FeedbackSummary, error)
}

type participationServiceImpl struct {
	stores Stores
	tx     store.Transactor
	logger *slog.Logger
}

var _ ParticipationService = (*participationServiceImpl)(nil)

// NewParticipationService creates a ParticipationService.
func NewParticipationService(stores Stores, tx store.Transactor, logger *slog.Logger) (ParticipationService, error) {
	if err := stores.Validate(); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transactor cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &participationServiceImpl{
		stores: stores,
		tx:     tx,
		logger: logger.With(slog.String("component", "participation_service")),
	}, nil
}

// Register implements ParticipationService.Register
// The event row is locked for the duration of the capacity check so
// concurrent sign-ups cannot overbook it.
func (s *participationServiceImpl) Register(ctx context.Context, in RegisterInput) (*domain.Registration, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	reg, err := domain.NewRegistration(in.EventID, in.ParticipantID, in.Name, in.BACBID, in.Email, time.Now())
	if err != nil {
		return nil, err
	}

	var existing *domain.Registration
	err = s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stores := s.stores.WithTx(tx)

		event, err := stores.Events.GetForUpdate(ctx, in.EventID)
		if err != nil {
			return notFoundOr(err, store.ErrEventNotFound, "participation", "register")
		}
		if !event.IsPubliclyVisible() {
			return ErrEventNotOpen
		}

		found, err := stores.Registrations.GetByEventAndParticipant(ctx, in.EventID, in.ParticipantID)
		if err == nil {
			existing = found
			return nil
		}
		if !store.IsNotFoundError(err) {
			return NewServiceError("participation", "register", "failed to look up registration", err)
		}

		if event.MaxParticipants != nil {
			count, err := stores.Registrations.CountActiveByEvent(ctx, event.ID)
			if err != nil {
				return NewServiceError("participation", "register", "failed to count registrations", err)
			}
			if count >= *event.MaxParticipants {
				return ErrEventFull
			}
		}

		if err := stores.Registrations.Create(ctx, reg); err != nil {
			if errors.Is(err, store.ErrRegistrationExists) {
				return err
			}
			return NewServiceError("participation", "register", "failed to save registration", err)
		}
		return nil
	})

	if errors.Is(err, store.ErrRegistrationExists) {
		// A concurrent request won; it has committed by now.
		existing, err = s.stores.Registrations.GetByEventAndParticipant(ctx, in.EventID, in.ParticipantID)
		if err != nil {
			return nil, NewServiceError("participation", "register", "failed to re-read registration", err)
		}
	}
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Debug("participant already registered",
			slog.String("registration_id", existing.ID.String()),
			slog.String("event_id", in.EventID.String()))
		return existing, ErrAlreadyRegistered
	}

	log.Info("participant registered",
		slog.String("registration_id", reg.ID.String()),
		slog.String("event_id", in.EventID.String()))
	return reg, nil
}

// GetRegistration implements ParticipationService.GetRegistration
func (s *participationServiceImpl) GetRegistration(
	ctx context.Context,
	registrationID uuid.UUID,
) (*domain.Registration, error) {
	reg, err := s.stores.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrRegistrationNotFound, "participation", "get_registration")
	}
	return reg, nil
}

// FindRegistration implements ParticipationService.FindRegistration
func (s *participationServiceImpl) FindRegistration(
	ctx context.Context,
	eventID, participantID uuid.UUID,
) (*domain.Registration, error) {
	reg, err := s.stores.Registrations.GetByEventAndParticipant(ctx, eventID, participantID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrRegistrationNotFound, "participation", "find_registration")
	}
	return reg, nil
}

// ListRegistrations implements ParticipationService.ListRegistrations
func (s *participationServiceImpl) ListRegistrations(
	ctx context.Context,
	participantID uuid.UUID,
) ([]*domain.Registration, error) {
	regs, err := s.stores.Registrations.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, NewServiceError("participation", "list_registrations", "failed to list registrations", err)
	}
	return regs, nil
}

// Cancel implements ParticipationService.Cancel
func (s *participationServiceImpl) Cancel(ctx context.Context, registrationID uuid.UUID) (*domain.Registration, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	reg, err := s.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Cancelled {
		return reg, nil
	}
	reg.Cancel(time.Now())
	if err := s.stores.Registrations.Update(ctx, reg); err != nil {
		return nil, notFoundOr(err, store.ErrRegistrationNotFound, "participation", "cancel")
	}

	log.Info("registration cancelled", slog.String("registration_id", reg.ID.String()))
	return reg, nil
}

// CheckIn implements ParticipationService.CheckIn
func (s *participationServiceImpl) CheckIn(
	ctx context.Context,
	registrationID uuid.UUID,
	code string,
) (*domain.Attendance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, event, err := s.activeRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if event.Modality == domain.ModalityAsynchronous {
		return nil, domain.ErrWrongModality
	}
	if event.VerificationCodeHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(event.VerificationCodeHash), []byte(code)) != nil {
		log.Warn("check-in with invalid verification code",
			slog.String("registration_id", registrationID.String()),
			slog.String("event_id", event.ID.String()))
		return nil, domain.ErrInvalidVerification
	}

	return s.updateAttendance(ctx, "check_in", registrationID, true, func(a *domain.Attendance, now time.Time) error {
		a.CheckIn(now)
		return nil
	})
}

// CheckOut implements ParticipationService.CheckOut
func (s *participationServiceImpl) CheckOut(ctx context.Context, registrationID uuid.UUID) (*domain.Attendance, error) {
	return s.updateAttendance(ctx, "check_out", registrationID, false, func(a *domain.Attendance, now time.Time) error {
		return a.CheckOut(now)
	})
}

// RecordProgress implements ParticipationService.RecordProgress
func (s *participationServiceImpl) RecordProgress(
	ctx context.Context,
	registrationID uuid.UUID,
	percentage int,
) (*domain.Attendance, error) {
	_, event, err := s.activeRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if event.Modality != domain.ModalityAsynchronous {
		return nil, domain.ErrWrongModality
	}
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	return s.updateAttendance(ctx, "record_progress", registrationID, true, func(a *domain.Attendance, now time.Time) error {
		return a.RecordProgress(percentage, now)
	})
}

// ConfirmAttendance implements ParticipationService.ConfirmAttendance
func (s *participationServiceImpl) ConfirmAttendance(
	ctx context.Context,
	registrationID, adminID uuid.UUID,
) (*domain.Attendance, error) {
	_, event, err := s.activeRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	return s.updateAttendance(ctx, "confirm", registrationID, true, func(a *domain.Attendance, now time.Time) error {
		a.ConfirmBy(adminID, now)
		if event.Modality == domain.ModalityAsynchronous {
			return a.RecordProgress(100, now)
		}
		return nil
	})
}

// SubmitFeedback implements ParticipationService.SubmitFeedback
func (s *participationServiceImpl) SubmitFeedback(ctx context.Context, in FeedbackInput) (*domain.Feedback, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, _, err := s.activeRegistration(ctx, in.RegistrationID); err != nil {
		return nil, err
	}

	feedback, err := domain.NewFeedback(
		in.RegistrationID,
		in.OverallRating,
		in.InstructorRating,
		in.ContentRating,
		in.RelevanceRating,
		in.ApplicationPlan,
		in.Comments,
		time.Now(),
	)
	if err != nil {
		return nil, err
	}

	if err := s.stores.Feedback.Create(ctx, feedback); err != nil {
		if errors.Is(err, store.ErrFeedbackExists) {
			return nil, err
		}
		log.Error("failed to save feedback",
			slog.String("error", err.Error()),
			slog.String("registration_id", in.RegistrationID.String()))
		return nil, NewServiceError("participation", "submit_feedback", "failed to save feedback", err)
	}

	log.Info("feedback submitted", slog.String("registration_id", in.RegistrationID.String()))
	return feedback, nil
}

// FeedbackSummary implements ParticipationService.FeedbackSummary
func (s *participationServiceImpl) FeedbackSummary(
	ctx context.Context,
	eventID uuid.UUID,
) (domain.FeedbackSummary, error) {
	if _, err := s.stores.Events.GetByID(ctx, eventID); err != nil {
		return domain.FeedbackSummary{}, notFoundOr(err, store.ErrEventNotFound, "participation", "feedback_summary")
	}
	items, err := s.stores.Feedback.ListByEvent(ctx, eventID)
	if err != nil {
		return domain.FeedbackSummary{}, NewServiceError("participation", "feedback_summary", "failed to list feedback", err)
	}
	return domain.SummarizeFeedback(eventID, items), nil
}

// activeRegistration loads a registration that is not cancelled and its event.
func (s *participationServiceImpl) activeRegistration(
	ctx context.Context,
	registrationID uuid.UUID,
) (*domain.Registration, *domain.Event, error) {
	reg, err := s.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, nil, err
	}
	if reg.Cancelled {
		return nil, nil, domain.ErrRegistrationCancelled
	}
	event, err := s.stores.Events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, nil, notFoundOr(err, store.ErrEventNotFound, "participation", "load_event")
	}
	return reg, event, nil
}

// updateAttendance applies mutate to the stored attendance record under a
// row lock. When create is false a missing record means the participant
// never checked in.
func (s *participationServiceImpl) updateAttendance(
	ctx context.Context,
	operation string,
	registrationID uuid.UUID,
	create bool,
	mutate func(a *domain.Attendance, now time.Time) error,
) (*domain.Attendance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var attendance *domain.Attendance
	err := s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		records := s.stores.Attendance.WithTx(tx)
		now := time.Now().UTC()

		if create {
			if err := records.CreateIfAbsent(ctx, domain.NewAttendance(registrationID, now)); err != nil {
				return NewServiceError("participation", operation, "failed to initialize attendance", err)
			}
		}

		current, err := records.GetForUpdate(ctx, registrationID)
		switch {
		case err == nil:
		case store.IsNotFoundError(err):
			return domain.ErrNotCheckedIn
		default:
			return NewServiceError("participation", operation, "failed to load attendance", err)
		}

		if err := mutate(current, now); err != nil {
			return err
		}
		if err := records.Upsert(ctx, current); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return err
			}
			return NewServiceError("participation", operation, "failed to save attendance", err)
		}

		attendance, err = records.Get(ctx, registrationID)
		if err != nil {
			return NewServiceError("participation", operation, "failed to re-read attendance", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("attendance updated",
		slog.String("operation", operation),
		slog.String("registration_id", registrationID.String()),
		slog.Bool("confirmed", attendance.Confirmed),
		slog.Int("completion_percentage", attendance.CompletionPercentage))
	return attendance, nil
}
