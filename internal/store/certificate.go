package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// CertificateStore defines the interface for certificate data access.
// Certificates are unique per registration and per certificate number.
type CertificateStore interface {
	// CreateIfAbsent inserts the certificate unless a row already exists for
	// its registration or its number. It reports whether the row was written.
	// A false result with a nil error means a conflicting row exists and was
	// committed by another writer.
	CreateIfAbsent(ctx context.Context, certificate *domain.Certificate) (bool, error)

	// GetByID retrieves a certificate by its unique ID.
	// Returns ErrCertificateNotFound if the certificate does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Certificate, error)

	// GetByRegistrationID retrieves the certificate of a registration.
	// Returns ErrCertificateNotFound if none was issued.
	GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*domain.Certificate, error)

	// GetByNumber retrieves a certificate by its public number.
	// Returns ErrCertificateNotFound if no certificate carries the number.
	GetByNumber(ctx context.Context, number string) (*domain.Certificate, error)

	// ListByParticipant returns a participant's certificates, newest first.
	// A non-nil eventID restricts the result to that event.
	ListByParticipant(ctx context.Context, participantID uuid.UUID, eventID *uuid.UUID) ([]*domain.Certificate, error)

	// Revoke persists the revocation fields of the certificate.
	// Returns ErrCertificateNotFound if the certificate does not exist.
	Revoke(ctx context.Context, certificate *domain.Certificate) error

	// ClaimNotification marks the certificate as notified if it was not
	// already, and reports whether this caller made the claim.
	ClaimNotification(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// ReleaseNotification clears a claim so that a failed delivery can be retried.
	ReleaseNotification(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new CertificateStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) CertificateStore
}
