package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in *ServiceError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrAlreadyRegistered is returned together with the existing registration
	// when a participant registers for the same event twice.
	// API layer should map this to HTTP 200 OK with the existing registration.
	ErrAlreadyRegistered = errors.New("participant is already registered for this event")

	// ErrEventFull indicates the event reached max_participants.
	// API layer should map this to HTTP 409 Conflict.
	ErrEventFull = errors.New("event has no remaining seats")

	// ErrEventNotOpen indicates the event is not publicly visible and cannot
	// take registrations.
	// API layer should map this to HTTP 409 Conflict.
	ErrEventNotOpen = errors.New("event is not open for registration")

	// ErrQuizLocked indicates a quiz change on an event that already left draft.
	// API layer should map this to HTTP 409 Conflict.
	ErrQuizLocked = errors.New("quiz can only be changed while the event is a draft")

	// ErrDraftingUnavailable indicates no quiz drafter is configured.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrDraftingUnavailable = errors.New("quiz drafting is not configured")

	// ErrNumberSpaceExhausted indicates every generated certificate number
	// collided with an existing one.
	ErrNumberSpaceExhausted = errors.New("could not allocate a unique certificate number")
)

// ServiceError wraps an unexpected failure with the service and operation
// that hit it.
type ServiceError struct {
	Service   string
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, operation, message string, err error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
