package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

const providerColumns = `id, provider_name, bacb_provider_number, contact_email, status,
	approved_at, expires_at, created_at, updated_at`

// PostgresProviderStore implements the store.ProviderStore interface
// using a PostgreSQL database as the storage backend.
type PostgresProviderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProviderStore creates a new PostgreSQL implementation of the ProviderStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresProviderStore(db store.DBTX, logger *slog.Logger) *PostgresProviderStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProviderStore{
		db:     db,
		logger: logger.With(slog.String("component", "provider_store")),
	}
}

var _ store.ProviderStore = (*PostgresProviderStore)(nil)

// Create implements store.ProviderStore.Create
func (s *PostgresProviderStore) Create(ctx context.Context, provider *domain.Provider) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := provider.Validate(); err != nil {
		log.Warn("provider validation failed during create",
			slog.String("error", err.Error()),
			slog.String("provider_id", provider.ID.String()))
		return err
	}

	query := `
		INSERT INTO providers (` + providerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		provider.ID,
		provider.ProviderName,
		provider.BACBProviderNumber,
		provider.ContactEmail,
		provider.Status,
		provider.ApprovedAt,
		provider.ExpiresAt,
		provider.CreatedAt,
		provider.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create provider",
			slog.String("error", err.Error()),
			slog.String("provider_id", provider.ID.String()))
		return MapError(err)
	}

	log.Info("provider created",
		slog.String("provider_id", provider.ID.String()),
		slog.String("bacb_provider_number", provider.BACBProviderNumber))
	return nil
}

// GetByID implements store.ProviderStore.GetByID
func (s *PostgresProviderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1`
	p, err := scanProvider(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("provider not found", slog.String("provider_id", id.String()))
			return nil, store.ErrProviderNotFound
		}
		log.Error("failed to get provider by ID",
			slog.String("error", err.Error()),
			slog.String("provider_id", id.String()))
		return nil, err
	}
	return p, nil
}

// Update implements store.ProviderStore.Update
func (s *PostgresProviderStore) Update(ctx context.Context, provider *domain.Provider) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := provider.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE providers
		SET provider_name = $1, contact_email = $2, status = $3,
			approved_at = $4, expires_at = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		provider.ProviderName,
		provider.ContactEmail,
		provider.Status,
		provider.ApprovedAt,
		provider.ExpiresAt,
		provider.UpdatedAt,
		provider.ID,
	)
	if err != nil {
		log.Error("failed to update provider",
			slog.String("error", err.Error()),
			slog.String("provider_id", provider.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrProviderNotFound); err != nil {
		return err
	}

	log.Info("provider updated",
		slog.String("provider_id", provider.ID.String()),
		slog.String("status", string(provider.Status)))
	return nil
}

// ListExpired implements store.ProviderStore.ListExpired
func (s *PostgresProviderStore) ListExpired(ctx context.Context, now time.Time) ([]*domain.Provider, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + providerColumns + `
		FROM providers
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, domain.ProviderStatusActive, now.UTC())
	if err != nil {
		log.Error("failed to query expired providers", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	providers := []*domain.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			log.Error("failed to scan provider row", slog.String("error", err.Error()))
			return nil, err
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return providers, nil
}

// WithTx implements store.ProviderStore.WithTx
func (s *PostgresProviderStore) WithTx(tx *sql.Tx) store.ProviderStore {
	return &PostgresProviderStore{db: tx, logger: s.logger}
}

func scanProvider(row rowScanner) (*domain.Provider, error) {
	var p domain.Provider
	var status string
	if err := row.Scan(
		&p.ID,
		&p.ProviderName,
		&p.BACBProviderNumber,
		&p.ContactEmail,
		&status,
		&p.ApprovedAt,
		&p.ExpiresAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = domain.ProviderStatus(status)
	return &p, nil
}
