package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// PostgresAttendanceStore implements the store.AttendanceStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAttendanceStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAttendanceStore creates a new PostgreSQL implementation of the AttendanceStore interface.
func NewPostgresAttendanceStore(db store.DBTX, logger *slog.Logger) *PostgresAttendanceStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAttendanceStore{
		db:     db,
		logger: logger.With(slog.String("component", "attendance_store")),
	}
}

var _ store.AttendanceStore = (*PostgresAttendanceStore)(nil)

const attendanceColumns = `registration_id, confirmed, completion_percentage, check_in_at,
	check_out_at, completed_at, confirmed_by, updated_at`

// Get implements store.AttendanceStore.Get
func (s *PostgresAttendanceStore) Get(ctx context.Context, registrationID uuid.UUID) (*domain.Attendance, error) {
	return s.get(ctx, `SELECT `+attendanceColumns+` FROM attendance WHERE registration_id = $1`, registrationID)
}

// GetForUpdate implements store.AttendanceStore.GetForUpdate
func (s *PostgresAttendanceStore) GetForUpdate(ctx context.Context, registrationID uuid.UUID) (*domain.Attendance, error) {
	return s.get(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE registration_id = $1 FOR UPDATE`, registrationID)
}

func (s *PostgresAttendanceStore) get(
	ctx context.Context,
	query string,
	registrationID uuid.UUID,
) (*domain.Attendance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		a           domain.Attendance
		checkIn     sql.NullTime
		checkOut    sql.NullTime
		completed   sql.NullTime
		confirmedBy uuid.NullUUID
	)
	err := s.db.QueryRowContext(ctx, query, registrationID).Scan(
		&a.RegistrationID,
		&a.Confirmed,
		&a.CompletionPercentage,
		&checkIn,
		&checkOut,
		&completed,
		&confirmedBy,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAttendanceNotFound
		}
		log.Error("failed to get attendance",
			slog.String("error", err.Error()),
			slog.String("registration_id", registrationID.String()))
		return nil, err
	}

	a.CheckInAt = fromNullTime(checkIn)
	a.CheckOutAt = fromNullTime(checkOut)
	a.CompletedAt = fromNullTime(completed)
	a.ConfirmedBy = fromNullUUID(confirmedBy)
	return &a, nil
}

// CreateIfAbsent implements store.AttendanceStore.CreateIfAbsent
func (s *PostgresAttendanceStore) CreateIfAbsent(ctx context.Context, a *domain.Attendance) error {
	return s.write(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (registration_id) DO NOTHING
	`, a)
}

// Upsert implements store.AttendanceStore.Upsert
// GREATEST and LEAST ignore NULLs, so a column that is unset on either side
// keeps the other side's value.
func (s *PostgresAttendanceStore) Upsert(ctx context.Context, a *domain.Attendance) error {
	return s.write(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (registration_id) DO UPDATE
		SET confirmed = attendance.confirmed OR EXCLUDED.confirmed,
			completion_percentage = GREATEST(attendance.completion_percentage, EXCLUDED.completion_percentage),
			check_in_at = LEAST(attendance.check_in_at, EXCLUDED.check_in_at),
			check_out_at = GREATEST(attendance.check_out_at, EXCLUDED.check_out_at),
			completed_at = LEAST(attendance.completed_at, EXCLUDED.completed_at),
			confirmed_by = COALESCE(attendance.confirmed_by, EXCLUDED.confirmed_by),
			updated_at = GREATEST(attendance.updated_at, EXCLUDED.updated_at)
	`, a)
}

func (s *PostgresAttendanceStore) write(ctx context.Context, query string, a *domain.Attendance) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := a.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, query,
		a.RegistrationID,
		a.Confirmed,
		a.CompletionPercentage,
		toNullTime(a.CheckInAt),
		toNullTime(a.CheckOutAt),
		toNullTime(a.CompletedAt),
		toNullUUID(a.ConfirmedBy),
		a.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to write attendance",
			slog.String("error", err.Error()),
			slog.String("registration_id", a.RegistrationID.String()))
		return MapError(err)
	}

	log.Debug("attendance recorded",
		slog.String("registration_id", a.RegistrationID.String()),
		slog.Bool("confirmed", a.Confirmed),
		slog.Int("completion_percentage", a.CompletionPercentage))
	return nil
}

// WithTx implements store.AttendanceStore.WithTx
func (s *PostgresAttendanceStore) WithTx(tx *sql.Tx) store.AttendanceStore {
	return &PostgresAttendanceStore{db: tx, logger: s.logger}
}
