package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// EventFilter narrows a public event listing. Zero values match everything.
type EventFilter struct {
	Category   domain.CECategory
	Modality   domain.Modality
	ProviderID uuid.UUID
	StartsFrom *time.Time
	Limit      int
	Offset     int
}

// EventStore defines the interface for event data access.
type EventStore interface {
	// Create saves a new event.
	// Returns validation errors if the event data is invalid.
	Create(ctx context.Context, event *domain.Event) error

	// GetByID retrieves an event by its unique ID.
	// Returns ErrEventNotFound if the event does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)

	// GetForUpdate retrieves an event and locks its row until the
	// surrounding transaction ends. Only meaningful on a store bound with WithTx.
	// Returns ErrEventNotFound if the event does not exist.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error)

	// Update persists every mutable field of the event, including its status.
	// Returns ErrEventNotFound if the event does not exist.
	Update(ctx context.Context, event *domain.Event) error

	// ListPublic returns approved, in-progress and completed events matching
	// filter, ordered by start date.
	ListPublic(ctx context.Context, filter EventFilter) ([]*domain.Event, error)

	// ListByProvider returns every event of a provider, newest first.
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Event, error)

	// ListByStatus returns the events in status, oldest first.
	ListByStatus(ctx context.Context, status domain.EventStatus) ([]*domain.Event, error)

	// ListDueToBegin returns approved events whose start date is at or before now.
	ListDueToBegin(ctx context.Context, now time.Time) ([]*domain.Event, error)

	// ListDueToComplete returns in-progress events whose effective end date is
	// at or before now.
	ListDueToComplete(ctx context.Context, now time.Time) ([]*domain.Event, error)

	// WithTx returns a new EventStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) EventStore
}
