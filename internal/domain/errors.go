// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// ValidationError unwraps to it so callers can match with errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")

	// ErrProviderLapsed is returned when an operation requires an active provider.
	ErrProviderLapsed = errors.New("provider accreditation is not active")

	// ErrInvalidTransition is returned when an event cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid event status transition")

	// ErrIneligible is returned when a registration has not earned a certificate.
	ErrIneligible = errors.New("registration is not eligible for a certificate")
)

// FieldError describes a single violated field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violated field of an entity or request,
// not only the first one found.
type ValidationError struct {
	Entity string       `json:"entity,omitempty"`
	Fields []FieldError `json:"fields"`
}

// NewValidationError creates a ValidationError holding a single field violation.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add records a violated field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns the error when fields were recorded and nil otherwise, so that
// a collecting validator can end with `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// FieldNames returns the names of all violated fields in the order they were added.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	prefix := "validation failed"
	if e.Entity != "" {
		prefix = e.Entity + " validation failed"
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ProviderLapsedError blocks approval of events owned by a provider whose
// accreditation is not active.
type ProviderLapsedError struct {
	ProviderID uuid.UUID
	Status     ProviderStatus
}

// Error implements the error interface.
func (e *ProviderLapsedError) Error() string {
	return fmt.Sprintf("provider %s is not active (status: %s)", e.ProviderID, e.Status)
}

// Unwrap returns ErrProviderLapsed.
func (e *ProviderLapsedError) Unwrap() error {
	return ErrProviderLapsed
}

// TransitionError reports a status change the event state machine does not allow.
type TransitionError struct {
	EventID uuid.UUID
	From    EventStatus
	To      EventStatus
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %s cannot move from %s to %s", e.EventID, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// UnmetCriterion names one eligibility requirement a registration has not met.
type UnmetCriterion string

// Eligibility criteria reported when unmet.
const (
	CriterionAttendanceUnconfirmed UnmetCriterion = "attendance_unconfirmed"
	CriterionFeedbackMissing       UnmetCriterion = "feedback_missing"
	CriterionQuizNotPassed         UnmetCriterion = "quiz_not_passed"
	CriterionEventNotStarted       UnmetCriterion = "event_not_started"
	CriterionEventArchived         UnmetCriterion = "event_archived"
	CriterionRegistrationCancelled UnmetCriterion = "registration_cancelled"
)

// EligibilityError is the structured negative result of an issuance attempt.
// It always carries every unmet criterion.
type EligibilityError struct {
	RegistrationID uuid.UUID
	Reasons        []UnmetCriterion
}

// Error implements the error interface.
func (e *EligibilityError) Error() string {
	reasons := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		reasons = append(reasons, string(r))
	}
	return fmt.Sprintf("registration %s is not eligible: %s", e.RegistrationID, strings.Join(reasons, ", "))
}

// Unwrap returns ErrIneligible.
func (e *EligibilityError) Unwrap() error {
	return ErrIneligible
}
