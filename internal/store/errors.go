package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// Entity-specific variants below wrap it.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would violate a uniqueness
	// constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or the database rejects it for a check, not-null or
	// foreign-key constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update matched no rows.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a database transaction fails
	// to begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	ErrProviderNotFound     = fmt.Errorf("%w: provider", ErrNotFound)
	ErrEventNotFound        = fmt.Errorf("%w: event", ErrNotFound)
	ErrRegistrationNotFound = fmt.Errorf("%w: registration", ErrNotFound)
	ErrAttendanceNotFound   = fmt.Errorf("%w: attendance", ErrNotFound)
	ErrFeedbackNotFound     = fmt.Errorf("%w: feedback", ErrNotFound)
	ErrQuizNotFound         = fmt.Errorf("%w: quiz", ErrNotFound)
	ErrCertificateNotFound  = fmt.Errorf("%w: certificate", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrRegistrationExists indicates the participant is already registered for the event.
	ErrRegistrationExists = fmt.Errorf("%w: registration", ErrDuplicate)

	// ErrFeedbackExists indicates feedback was already submitted for the registration.
	ErrFeedbackExists = fmt.Errorf("%w: feedback", ErrDuplicate)

	// ErrQuizExists indicates the event already has a quiz.
	ErrQuizExists = fmt.Errorf("%w: quiz", ErrDuplicate)

	// ErrCertificateExists indicates a certificate row collided on registration
	// or certificate number.
	ErrCertificateExists = fmt.Errorf("%w: certificate", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "event", "certificate")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
