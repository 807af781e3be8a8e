package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCertificate(t *testing.T) *domain.Certificate {
	t.Helper()

	now := time.Now().UTC()
	provider, err := domain.NewProvider("Behavior School", "OP-01-0001", "ops@example.com", now, 0)
	require.NoError(t, err)
	event, err := domain.NewEvent(provider.ID, "Ethics in Practice", domain.CECategoryEthics,
		domain.ModalityInPerson, 1.5, now.Add(24*time.Hour))
	require.NoError(t, err)
	reg, err := domain.NewRegistration(event.ID, uuid.New(), "Ada Analyst", "1-23-4567", "ada@example.com", now)
	require.NoError(t, err)

	cert, err := domain.NewCertificate("CE-2026-ABCDEFGHJK", reg, event, provider, now)
	require.NoError(t, err)
	return cert
}

func TestPostgresCertificateStore_CreateIfAbsent(t *testing.T) {
	t.Parallel()

	insert := regexp.QuoteMeta("INSERT INTO certificates") + ".*" + regexp.QuoteMeta("ON CONFLICT DO NOTHING")

	t.Run("inserts a new certificate", func(t *testing.T) {
		t.Parallel()

		db, mock := newSQLMock(t)
		mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := NewPostgresCertificateStore(db, nil).CreateIfAbsent(context.Background(), testCertificate(t))
		require.NoError(t, err)
		assert.True(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a conflicting row", func(t *testing.T) {
		t.Parallel()

		db, mock := newSQLMock(t)
		mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 0))

		created, err := NewPostgresCertificateStore(db, nil).CreateIfAbsent(context.Background(), testCertificate(t))
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("maps a unique violation", func(t *testing.T) {
		t.Parallel()

		db, mock := newSQLMock(t)
		mock.ExpectExec(insert).WillReturnError(&pgconn.PgError{Code: "23505"})

		_, err := NewPostgresCertificateStore(db, nil).CreateIfAbsent(context.Background(), testCertificate(t))
		assert.ErrorIs(t, err, store.ErrCertificateExists)
	})

	t.Run("rejects an invalid certificate without touching the database", func(t *testing.T) {
		t.Parallel()

		db, mock := newSQLMock(t)
		cert := testCertificate(t)
		cert.CertificateNumber = ""

		_, err := NewPostgresCertificateStore(db, nil).CreateIfAbsent(context.Background(), cert)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresCertificateStore_ClaimNotification(t *testing.T) {
	t.Parallel()

	claim := regexp.QuoteMeta("UPDATE certificates SET notified_at = $1 WHERE id = $2 AND notified_at IS NULL")

	t.Run("first claim wins", func(t *testing.T) {
		t.Parallel()

		db, mock := newSQLMock(t)
		id := uuid.New()
		mock.ExpectExec(claim).WithArgs(sqlmock.AnyArg(), id).WillReturnResult(sqlmock.NewResult(0, 1))

		claimed, err := NewPostgresCertificateStore(db, nil).ClaimNotification(context.Background(), id, time.Now())
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("already notified", func(t *testing.T) {
		t.Parallel()

		db, mock := newSQLMock(t)
		mock.ExpectExec(claim).WillReturnResult(sqlmock.NewResult(0, 0))

		claimed, err := NewPostgresCertificateStore(db, nil).ClaimNotification(context.Background(), uuid.New(), time.Now())
		require.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestPostgresCertificateStore_GetByNumber_NotFound(t *testing.T) {
	t.Parallel()

	db, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM certificates WHERE certificate_number = $1")).
		WithArgs("CE-2026-MISSING000").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewPostgresCertificateStore(db, nil).GetByNumber(context.Background(), "CE-2026-MISSING000")
	assert.ErrorIs(t, err, store.ErrCertificateNotFound)
}
