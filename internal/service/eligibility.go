package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/domain/eligibility"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// EligibilityService exposes the eligibility decision as a read-only
// pre-check.
type EligibilityService interface {
	// Check evaluates the participant's registration for an event.
	Check(ctx context.Context, eventID, participantID uuid.UUID) (eligibility.Result, error)

	// CheckRegistration evaluates a registration by ID.
	CheckRegistration(ctx context.Context, registrationID uuid.UUID) (eligibility.Result, error)
}

type eligibilityServiceImpl struct {
	stores    Stores
	evaluator eligibility.Service
	logger    *slog.Logger
}

var _ EligibilityService = (*eligibilityServiceImpl)(nil)

// NewEligibilityService creates an EligibilityService.
func NewEligibilityService(
	stores Stores,
	evaluator eligibility.Service,
	logger *slog.Logger,
) (EligibilityService, error) {
	if err := stores.Validate(); err != nil {
		return nil, err
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &eligibilityServiceImpl{
		stores:    stores,
		evaluator: evaluator,
		logger:    logger.With(slog.String("component", "eligibility_service")),
	}, nil
}

// Check implements EligibilityService.Check
func (s *eligibilityServiceImpl) Check(
	ctx context.Context,
	eventID, participantID uuid.UUID,
) (eligibility.Result, error) {
	reg, err := s.stores.Registrations.GetByEventAndParticipant(ctx, eventID, participantID)
	if err != nil {
		return eligibility.Result{}, notFoundOr(err, store.ErrRegistrationNotFound, "eligibility", "check")
	}
	return s.CheckRegistration(ctx, reg.ID)
}

// CheckRegistration implements EligibilityService.CheckRegistration
func (s *eligibilityServiceImpl) CheckRegistration(
	ctx context.Context,
	registrationID uuid.UUID,
) (eligibility.Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	snap, err := loadSnapshot(ctx, s.stores, registrationID)
	if err != nil {
		return eligibility.Result{}, err
	}
	result, err := s.evaluator.Evaluate(snap)
	if err != nil {
		return eligibility.Result{}, NewServiceError("eligibility", "check", "evaluation failed", err)
	}

	log.Debug("eligibility evaluated",
		slog.String("registration_id", registrationID.String()),
		slog.Bool("eligible", result.Eligible),
		slog.Int("unmet", len(result.Reasons)))
	return result, nil
}

// loadSnapshot reads the committed state the evaluator needs. Missing
// attendance, feedback or quiz are normal and leave the field nil.
func loadSnapshot(ctx context.Context, stores Stores, registrationID uuid.UUID) (eligibility.Snapshot, error) {
	var snap eligibility.Snapshot

	reg, err := stores.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return snap, notFoundOr(err, store.ErrRegistrationNotFound, "eligibility", "load_snapshot")
	}
	snap.Registration = reg

	event, err := stores.Events.GetByID(ctx, reg.EventID)
	if err != nil {
		return snap, notFoundOr(err, store.ErrEventNotFound, "eligibility", "load_snapshot")
	}
	snap.Event = event

	attendance, err := stores.Attendance.Get(ctx, reg.ID)
	switch {
	case err == nil:
		snap.Attendance = attendance
	case !store.IsNotFoundError(err):
		return snap, NewServiceError("eligibility", "load_snapshot", "failed to load attendance", err)
	}

	feedback, err := stores.Feedback.GetByRegistrationID(ctx, reg.ID)
	switch {
	case err == nil:
		snap.Feedback = feedback
	case !store.IsNotFoundError(err):
		return snap, NewServiceError("eligibility", "load_snapshot", "failed to load feedback", err)
	}

	quiz, err := stores.Quizzes.GetByEventID(ctx, event.ID)
	switch {
	case err == nil:
		snap.Quiz = quiz
		responses, err := stores.Quizzes.ListResponses(ctx, reg.ID, quiz.ID)
		if err != nil {
			return snap, NewServiceError("eligibility", "load_snapshot", "failed to load quiz responses", err)
		}
		snap.Responses = responses
	case !errors.Is(err, store.ErrNotFound):
		return snap, NewServiceError("eligibility", "load_snapshot", "failed to load quiz", err)
	}

	return snap, nil
}
