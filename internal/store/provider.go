package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// ProviderStore defines the interface for provider data access.
type ProviderStore interface {
	// Create saves a new provider.
	// Returns validation errors if the provider data is invalid.
	Create(ctx context.Context, provider *domain.Provider) error

	// GetByID retrieves a provider by its unique ID.
	// Returns ErrProviderNotFound if the provider does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error)

	// Update modifies an existing provider's status and approval period.
	// Returns ErrProviderNotFound if the provider does not exist.
	Update(ctx context.Context, provider *domain.Provider) error

	// ListExpired returns active providers whose approval ended at or before now.
	ListExpired(ctx context.Context, now time.Time) ([]*domain.Provider, error)

	// WithTx returns a new ProviderStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ProviderStore
}
