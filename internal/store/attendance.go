package store

import (
	"context"
	"database/sql"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// AttendanceStore defines the interface for attendance data access.
// There is at most one attendance record per registration.
type AttendanceStore interface {
	// Get retrieves the attendance record of a registration.
	// Returns ErrAttendanceNotFound if nothing has been recorded yet.
	Get(ctx context.Context, registrationID uuid.UUID) (*domain.Attendance, error)

	// GetForUpdate retrieves the attendance record and locks its row until
	// the surrounding transaction ends.
	// Returns ErrAttendanceNotFound if nothing has been recorded yet.
	GetForUpdate(ctx context.Context, registrationID uuid.UUID) (*domain.Attendance, error)

	// CreateIfAbsent stores attendance unless the registration already has a
	// record, in which case the stored one is left untouched.
	CreateIfAbsent(ctx context.Context, attendance *domain.Attendance) error

	// Upsert creates the attendance record of a registration or merges
	// attendance into the stored one as domain.Attendance.Merge does, so a
	// stale write never withdraws confirmation or lowers completion.
	Upsert(ctx context.Context, attendance *domain.Attendance) error

	// WithTx returns a new AttendanceStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) AttendanceStore
}
