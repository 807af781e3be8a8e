package store

import (
	"context"
	"database/sql"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// FeedbackStore defines the interface for feedback data access.
type FeedbackStore interface {
	// Create saves submitted feedback.
	// Returns ErrFeedbackExists if the registration already submitted feedback.
	Create(ctx context.Context, feedback *domain.Feedback) error

	// GetByRegistrationID retrieves the feedback of a registration.
	// Returns ErrFeedbackNotFound if none was submitted.
	GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*domain.Feedback, error)

	// ListByEvent returns every feedback submitted for an event.
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Feedback, error)

	// WithTx returns a new FeedbackStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) FeedbackStore
}
