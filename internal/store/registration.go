package store

import (
	"context"
	"database/sql"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// RegistrationStore defines the interface for registration data access.
type RegistrationStore interface {
	// Create saves a new registration.
	// Returns ErrRegistrationExists if the participant already holds a
	// registration for the event.
	Create(ctx context.Context, registration *domain.Registration) error

	// GetByID retrieves a registration by its unique ID.
	// Returns ErrRegistrationNotFound if the registration does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error)

	// GetByEventAndParticipant retrieves the participant's registration for an event.
	// Returns ErrRegistrationNotFound if there is none.
	GetByEventAndParticipant(ctx context.Context, eventID, participantID uuid.UUID) (*domain.Registration, error)

	// Update persists the cancellation state of a registration.
	// Returns ErrRegistrationNotFound if the registration does not exist.
	Update(ctx context.Context, registration *domain.Registration) error

	// CountActiveByEvent counts registrations for an event that are not cancelled.
	CountActiveByEvent(ctx context.Context, eventID uuid.UUID) (int, error)

	// ListByParticipant returns a participant's registrations, newest first.
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*domain.Registration, error)

	// ListByEvent returns the registrations for an event, oldest first.
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Registration, error)

	// WithTx returns a new RegistrationStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) RegistrationStore
}
