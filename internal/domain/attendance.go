package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Attendance errors
var (
	ErrNotCheckedIn          = errors.New("participant has not checked in")
	ErrInvalidVerification   = errors.New("attendance verification code is invalid")
	ErrWrongModality         = errors.New("operation does not apply to this event modality")
	ErrInvalidCompletionRate = errors.New("completion percentage must be between 0 and 100")
)

// Attendance is the presence or completion evidence for one registration.
// In-person and synchronous events use Confirmed; asynchronous events use
// CompletionPercentage.
type Attendance struct {
	RegistrationID       uuid.UUID  `json:"registration_id"`
	Confirmed            bool       `json:"confirmed"`
	CompletionPercentage int        `json:"completion_percentage"`
	CheckInAt            *time.Time `json:"check_in_at,omitempty"`
	CheckOutAt           *time.Time `json:"check_out_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	ConfirmedBy          *uuid.UUID `json:"confirmed_by,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewAttendance creates an empty attendance record for a registration.
func NewAttendance(registrationID uuid.UUID, now time.Time) *Attendance {
	return &Attendance{RegistrationID: registrationID, UpdatedAt: now.UTC()}
}

// Validate checks that a confirmed record carries evidence.
func (a *Attendance) Validate() error {
	v := &ValidationError{Entity: "attendance"}
	if a.RegistrationID == uuid.Nil {
		v.Add("registration_id", "is required")
	}
	if a.CompletionPercentage < 0 || a.CompletionPercentage > 100 {
		v.Add("completion_percentage", "must be between 0 and 100")
	}
	if a.Confirmed && a.CheckInAt == nil && a.ConfirmedBy == nil {
		v.Add("confirmed", "requires a check-in or an administrator confirmation")
	}
	if a.CheckOutAt != nil && a.CheckInAt != nil && a.CheckOutAt.Before(*a.CheckInAt) {
		v.Add("check_out_at", "must not be before check_in_at")
	}
	return v.OrNil()
}

// CheckIn records arrival and confirms attendance. Repeat check-ins keep the
// first timestamp.
func (a *Attendance) CheckIn(now time.Time) {
	now = now.UTC()
	if a.CheckInAt == nil {
		a.CheckInAt = &now
	}
	a.Confirmed = true
	a.UpdatedAt = now
}

// CheckOut records departure.
func (a *Attendance) CheckOut(now time.Time) error {
	if a.CheckInAt == nil {
		return ErrNotCheckedIn
	}
	now = now.UTC()
	a.CheckOutAt = &now
	a.UpdatedAt = now
	return nil
}

// ConfirmBy records an administrator's confirmation, used when the
// participant could not check in themselves.
func (a *Attendance) ConfirmBy(adminID uuid.UUID, now time.Time) {
	now = now.UTC()
	a.Confirmed = true
	a.ConfirmedBy = &adminID
	a.UpdatedAt = now
}

// RecordProgress raises the completion percentage. Progress never goes
// backwards; reaching 100 stamps CompletedAt.
func (a *Attendance) RecordProgress(percentage int, now time.Time) error {
	if percentage < 0 || percentage > 100 {
		return ErrInvalidCompletionRate
	}
	now = now.UTC()
	if percentage > a.CompletionPercentage {
		a.CompletionPercentage = percentage
	}
	if a.CompletionPercentage == 100 && a.CompletedAt == nil {
		a.CompletedAt = &now
	}
	a.UpdatedAt = now
	return nil
}

// Merge folds the evidence in prev into a. Confirmation and completion are
// never withdrawn: the higher percentage wins, the earliest check-in and
// completion and the latest check-out are kept, and the first confirming
// administrator is kept.
func (a *Attendance) Merge(prev *Attendance) {
	if prev == nil {
		return
	}
	a.Confirmed = a.Confirmed || prev.Confirmed
	if prev.CompletionPercentage > a.CompletionPercentage {
		a.CompletionPercentage = prev.CompletionPercentage
	}
	a.CheckInAt = earliest(a.CheckInAt, prev.CheckInAt)
	a.CompletedAt = earliest(a.CompletedAt, prev.CompletedAt)
	a.CheckOutAt = latest(a.CheckOutAt, prev.CheckOutAt)
	if prev.ConfirmedBy != nil {
		a.ConfirmedBy = prev.ConfirmedBy
	}
	if prev.UpdatedAt.After(a.UpdatedAt) {
		a.UpdatedAt = prev.UpdatedAt
	}
}

func earliest(x, y *time.Time) *time.Time {
	if x == nil || (y != nil && y.Before(*x)) {
		return y
	}
	return x
}

func latest(x, y *time.Time) *time.Time {
	if x == nil || (y != nil && y.After(*x)) {
		return y
	}
	return x
}

// Satisfied reports whether the attendance criterion is met for modality.
func (a *Attendance) Satisfied(modality Modality) bool {
	if a == nil {
		return false
	}
	if modality == ModalityAsynchronous {
		return a.CompletionPercentage >= 100
	}
	return a.Confirmed
}
