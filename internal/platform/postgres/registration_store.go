package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

const registrationColumns = `id, event_id, participant_id, participant_name, participant_bacb_id,
	participant_email, confirmation_code, cancelled, cancelled_at, registered_at`

// PostgresRegistrationStore implements the store.RegistrationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRegistrationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRegistrationStore creates a new PostgreSQL implementation of the RegistrationStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresRegistrationStore(db store.DBTX, logger *slog.Logger) *PostgresRegistrationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRegistrationStore{
		db:     db,
		logger: logger.With(slog.String("component", "registration_store")),
	}
}

var _ store.RegistrationStore = (*PostgresRegistrationStore)(nil)

// Create implements store.RegistrationStore.Create
func (s *PostgresRegistrationStore) Create(ctx context.Context, r *domain.Registration) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := r.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.EventID,
		r.ParticipantID,
		r.ParticipantName,
		r.ParticipantBACBID,
		r.ParticipantEmail,
		r.ConfirmationCode,
		r.Cancelled,
		toNullTime(r.CancelledAt),
		r.RegisteredAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("participant already registered",
				slog.String("event_id", r.EventID.String()),
				slog.String("participant_id", r.ParticipantID.String()))
			return MapUniqueViolation(err, store.ErrRegistrationExists)
		}
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: event with ID %s not found", store.ErrInvalidEntity, r.EventID)
		}
		log.Error("failed to create registration",
			slog.String("error", err.Error()),
			slog.String("registration_id", r.ID.String()))
		return MapError(err)
	}

	log.Info("registration created",
		slog.String("registration_id", r.ID.String()),
		slog.String("event_id", r.EventID.String()))
	return nil
}

// GetByID implements store.RegistrationStore.GetByID
func (s *PostgresRegistrationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return s.get(ctx, query, id)
}

// GetByEventAndParticipant implements store.RegistrationStore.GetByEventAndParticipant
func (s *PostgresRegistrationStore) GetByEventAndParticipant(
	ctx context.Context,
	eventID, participantID uuid.UUID,
) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 AND participant_id = $2`
	return s.get(ctx, query, eventID, participantID)
}

func (s *PostgresRegistrationStore) get(ctx context.Context, query string, args ...any) (*domain.Registration, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	r, err := scanRegistration(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRegistrationNotFound
		}
		log.Error("failed to get registration", slog.String("error", err.Error()))
		return nil, err
	}
	return r, nil
}

// Update implements store.RegistrationStore.Update
func (s *PostgresRegistrationStore) Update(ctx context.Context, r *domain.Registration) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE registrations SET cancelled = $1, cancelled_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, r.Cancelled, toNullTime(r.CancelledAt), r.ID)
	if err != nil {
		log.Error("failed to update registration",
			slog.String("error", err.Error()),
			slog.String("registration_id", r.ID.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrRegistrationNotFound)
}

// CountActiveByEvent implements store.RegistrationStore.CountActiveByEvent
func (s *PostgresRegistrationStore) CountActiveByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND NOT cancelled`
	if err := s.db.QueryRowContext(ctx, query, eventID).Scan(&n); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to count registrations",
			slog.String("error", err.Error()),
			slog.String("event_id", eventID.String()))
		return 0, err
	}
	return n, nil
}

// ListByParticipant implements store.RegistrationStore.ListByParticipant
func (s *PostgresRegistrationStore) ListByParticipant(
	ctx context.Context,
	participantID uuid.UUID,
) ([]*domain.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE participant_id = $1
		ORDER BY registered_at DESC
	`
	return s.list(ctx, query, participantID)
}

// ListByEvent implements store.RegistrationStore.ListByEvent
func (s *PostgresRegistrationStore) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1
		ORDER BY registered_at ASC
	`
	return s.list(ctx, query, eventID)
}

func (s *PostgresRegistrationStore) list(ctx context.Context, query string, args ...any) ([]*domain.Registration, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query registrations", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	registrations := []*domain.Registration{}
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, r)
	}
	return registrations, rows.Err()
}

// WithTx implements store.RegistrationStore.WithTx
func (s *PostgresRegistrationStore) WithTx(tx *sql.Tx) store.RegistrationStore {
	return &PostgresRegistrationStore{db: tx, logger: s.logger}
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	var r domain.Registration
	var cancelledAt sql.NullTime
	if err := row.Scan(
		&r.ID,
		&r.EventID,
		&r.ParticipantID,
		&r.ParticipantName,
		&r.ParticipantBACBID,
		&r.ParticipantEmail,
		&r.ConfirmationCode,
		&r.Cancelled,
		&cancelledAt,
		&r.RegisteredAt,
	); err != nil {
		return nil, err
	}
	r.CancelledAt = fromNullTime(cancelledAt)
	return &r, nil
}
