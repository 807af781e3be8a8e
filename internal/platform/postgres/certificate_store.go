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

const certificateColumns = `id, certificate_number, registration_id, event_id, participant_id,
	participant_name, participant_bacb_id, event_title, event_date, total_ceus, ce_category,
	provider_name, provider_number, instructor_name, issued_at, status, revoked_at,
	revocation_reason, revoked_by, notified_at`

// PostgresCertificateStore implements the store.CertificateStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCertificateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCertificateStore creates a new PostgreSQL implementation of the CertificateStore interface.
func NewPostgresCertificateStore(db store.DBTX, logger *slog.Logger) *PostgresCertificateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCertificateStore{
		db:     db,
		logger: logger.With(slog.String("component", "certificate_store")),
	}
}

var _ store.CertificateStore = (*PostgresCertificateStore)(nil)

// CreateIfAbsent implements store.CertificateStore.CreateIfAbsent
// ON CONFLICT DO NOTHING waits for a concurrent insert of the same
// registration or number to settle, so a false result always refers to a
// committed row.
func (s *PostgresCertificateStore) CreateIfAbsent(ctx context.Context, c *domain.Certificate) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := c.Validate(); err != nil {
		return false, err
	}

	query := `
		INSERT INTO certificates (` + certificateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20)
		ON CONFLICT DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.CertificateNumber,
		c.RegistrationID,
		c.EventID,
		c.ParticipantID,
		c.ParticipantName,
		c.ParticipantBACBID,
		c.EventTitle,
		c.EventDate,
		c.TotalCEUs,
		c.Category,
		c.ProviderName,
		c.ProviderNumber,
		c.InstructorName,
		c.IssuedAt,
		c.Status,
		toNullTime(c.RevokedAt),
		c.RevocationReason,
		toNullUUID(c.RevokedBy),
		toNullTime(c.NotifiedAt),
	)
	if err != nil {
		log.Error("failed to insert certificate",
			slog.String("error", err.Error()),
			slog.String("registration_id", c.RegistrationID.String()))
		if IsUniqueViolation(err) {
			return false, MapUniqueViolation(err, store.ErrCertificateExists)
		}
		return false, MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		log.Debug("certificate insert skipped by conflict",
			slog.String("registration_id", c.RegistrationID.String()),
			slog.String("certificate_number", c.CertificateNumber))
		return false, nil
	}

	log.Info("certificate inserted",
		slog.String("certificate_id", c.ID.String()),
		slog.String("certificate_number", c.CertificateNumber))
	return true, nil
}

// GetByID implements store.CertificateStore.GetByID
func (s *PostgresCertificateStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Certificate, error) {
	return s.get(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id)
}

// GetByRegistrationID implements store.CertificateStore.GetByRegistrationID
func (s *PostgresCertificateStore) GetByRegistrationID(
	ctx context.Context,
	registrationID uuid.UUID,
) (*domain.Certificate, error) {
	return s.get(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE registration_id = $1`, registrationID)
}

// GetByNumber implements store.CertificateStore.GetByNumber
func (s *PostgresCertificateStore) GetByNumber(ctx context.Context, number string) (*domain.Certificate, error) {
	return s.get(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE certificate_number = $1`, number)
}

func (s *PostgresCertificateStore) get(ctx context.Context, query string, arg any) (*domain.Certificate, error) {
	c, err := scanCertificate(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCertificateNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get certificate",
			slog.String("error", err.Error()))
		return nil, err
	}
	return c, nil
}

// ListByParticipant implements store.CertificateStore.ListByParticipant
func (s *PostgresCertificateStore) ListByParticipant(
	ctx context.Context,
	participantID uuid.UUID,
	eventID *uuid.UUID,
) ([]*domain.Certificate, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE participant_id = $1 AND ($2::uuid IS NULL OR event_id = $2)
		ORDER BY issued_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, participantID, toNullUUID(eventID))
	if err != nil {
		log.Error("failed to query certificates",
			slog.String("error", err.Error()),
			slog.String("participant_id", participantID.String()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	certificates := []*domain.Certificate{}
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certificates = append(certificates, c)
	}
	return certificates, rows.Err()
}

// Revoke implements store.CertificateStore.Revoke
func (s *PostgresCertificateStore) Revoke(ctx context.Context, c *domain.Certificate) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE certificates
		SET status = $1, revoked_at = $2, revocation_reason = $3, revoked_by = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		c.Status,
		toNullTime(c.RevokedAt),
		c.RevocationReason,
		toNullUUID(c.RevokedBy),
		c.ID,
	)
	if err != nil {
		log.Error("failed to revoke certificate",
			slog.String("error", err.Error()),
			slog.String("certificate_id", c.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrCertificateNotFound); err != nil {
		return err
	}

	log.Info("certificate revoked",
		slog.String("certificate_id", c.ID.String()),
		slog.String("certificate_number", c.CertificateNumber))
	return nil
}

// ClaimNotification implements store.CertificateStore.ClaimNotification
func (s *PostgresCertificateStore) ClaimNotification(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE certificates SET notified_at = $1 WHERE id = $2 AND notified_at IS NULL`,
		at.UTC(), id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to claim certificate notification",
			slog.String("error", err.Error()),
			slog.String("certificate_id", id.String()))
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseNotification implements store.CertificateStore.ReleaseNotification
func (s *PostgresCertificateStore) ReleaseNotification(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE certificates SET notified_at = NULL WHERE id = $1`, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to release certificate notification",
			slog.String("error", err.Error()),
			slog.String("certificate_id", id.String()))
	}
	return err
}

// WithTx implements store.CertificateStore.WithTx
func (s *PostgresCertificateStore) WithTx(tx *sql.Tx) store.CertificateStore {
	return &PostgresCertificateStore{db: tx, logger: s.logger}
}

func scanCertificate(row rowScanner) (*domain.Certificate, error) {
	var (
		c          domain.Certificate
		category   string
		status     string
		revokedAt  sql.NullTime
		revokedBy  uuid.NullUUID
		notifiedAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.CertificateNumber,
		&c.RegistrationID,
		&c.EventID,
		&c.ParticipantID,
		&c.ParticipantName,
		&c.ParticipantBACBID,
		&c.EventTitle,
		&c.EventDate,
		&c.TotalCEUs,
		&category,
		&c.ProviderName,
		&c.ProviderNumber,
		&c.InstructorName,
		&c.IssuedAt,
		&status,
		&revokedAt,
		&c.RevocationReason,
		&revokedBy,
		&notifiedAt,
	); err != nil {
		return nil, err
	}
	c.Category = domain.CECategory(category)
	c.Status = domain.CertificateStatus(status)
	c.RevokedAt = fromNullTime(revokedAt)
	c.RevokedBy = fromNullUUID(revokedBy)
	c.NotifiedAt = fromNullTime(notifiedAt)
	return &c, nil
}
