package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/behaviorschool/ceu-api/internal/api/shared"
	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/generation"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/go-playground/validator/v10"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var eligibilityErr *domain.EligibilityError
	var validationErrs validator.ValidationErrors

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidRole):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Structured negative results
	case errors.As(err, &eligibilityErr):
		return http.StatusUnprocessableEntity

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.As(err, &validationErrs),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidVerification),
		errors.Is(err, domain.ErrInvalidCompletionRate),
		errors.Is(err, domain.ErrEmptyRevocationReason),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrEventFull),
		errors.Is(err, service.ErrEventNotOpen),
		errors.Is(err, service.ErrQuizLocked),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrProviderLapsed),
		errors.Is(err, domain.ErrMaxAttemptsReached),
		errors.Is(err, domain.ErrQuizHasNoQuestions),
		errors.Is(err, domain.ErrRegistrationCancelled),
		errors.Is(err, domain.ErrNotCheckedIn),
		errors.Is(err, domain.ErrWrongModality),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Upstream and capacity errors
	case errors.Is(err, service.ErrDraftingUnavailable),
		errors.Is(err, service.ErrNumberSpaceExhausted),
		errors.Is(err, generation.ErrTransientFailure):
		return http.StatusServiceUnavailable

	case errors.Is(err, generation.ErrContentBlocked),
		errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrDraftFailed):
		return http.StatusBadGateway

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var eligibilityErr *domain.EligibilityError
	var validationErrs validator.ValidationErrors

	switch {
	// Authentication and authorization
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidRole):
		return "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "You are not allowed to perform this operation"

	// Eligibility
	case errors.As(err, &eligibilityErr):
		return IneligibleErrorCode

	// Validation
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(err)
	case errors.Is(err, domain.ErrValidation):
		return "Validation error"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrInvalidVerification):
		return "Invalid check-in code"
	case errors.Is(err, domain.ErrInvalidCompletionRate):
		return "Completion percentage must be between 0 and 100"
	case errors.Is(err, domain.ErrEmptyRevocationReason):
		return "Revocation reason is required"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	// Not found
	case errors.Is(err, store.ErrProviderNotFound):
		return "Provider not found"
	case errors.Is(err, store.ErrEventNotFound):
		return "Event not found"
	case errors.Is(err, store.ErrRegistrationNotFound):
		return "Registration not found"
	case errors.Is(err, store.ErrAttendanceNotFound):
		return "Attendance not found"
	case errors.Is(err, store.ErrFeedbackNotFound):
		return "Feedback not found"
	case errors.Is(err, store.ErrQuizNotFound):
		return "Quiz not found"
	case errors.Is(err, store.ErrCertificateNotFound):
		return "Certificate not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	// Conflicts
	case errors.Is(err, service.ErrAlreadyRegistered):
		return "Already registered for this event"
	case errors.Is(err, service.ErrEventFull):
		return "Event is full"
	case errors.Is(err, service.ErrEventNotOpen):
		return "Event is not open for registration"
	case errors.Is(err, service.ErrQuizLocked):
		return "Quiz can only be changed while the event is a draft"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "Event cannot move to the requested status"
	case errors.Is(err, domain.ErrProviderLapsed):
		return "Provider accreditation is not active"
	case errors.Is(err, domain.ErrMaxAttemptsReached):
		return "Maximum quiz attempts reached"
	case errors.Is(err, domain.ErrQuizHasNoQuestions):
		return "Quiz has no questions"
	case errors.Is(err, domain.ErrRegistrationCancelled):
		return "Registration has been cancelled"
	case errors.Is(err, domain.ErrNotCheckedIn):
		return "Participant has not checked in"
	case errors.Is(err, domain.ErrWrongModality):
		return "Operation does not apply to this event modality"
	case errors.Is(err, store.ErrFeedbackExists):
		return "Feedback was already submitted"
	case errors.Is(err, store.ErrQuizExists):
		return "Event already has a quiz"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	// Upstream and capacity
	case errors.Is(err, service.ErrDraftingUnavailable):
		return "Quiz drafting is not available"
	case errors.Is(err, generation.ErrTransientFailure):
		return "Quiz drafting is temporarily unavailable"
	case errors.Is(err, generation.ErrContentBlocked):
		return "Drafted content was blocked"
	case errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrDraftFailed):
		return "Quiz drafting failed"
	case errors.Is(err, service.ErrNumberSpaceExhausted):
		return "Certificate could not be issued, try again"

	default:
		return "An unexpected error occurred"
	}
}

// IneligibleErrorCode is the error of a certificate request whose
// registration misses a criterion; the unmet criteria are in reasons.
const IneligibleErrorCode = "ineligible"

// errorDetails returns the client-safe structured part of err, if any.
func errorDetails(err error) interface{} {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return map[string]interface{}{"fields": validationErr.Fields}
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]domain.FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, domain.FieldError{
				Field:   fe.Field(),
				Message: getValidationTagMessage(fe.Tag()),
			})
		}
		return map[string]interface{}{"fields": fields}
	}
	return nil
}

// HandleAPIError writes the status, safe message and structured details for
// err. defaultMsg replaces the generic message of unexpected failures.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}

	opts := []shared.ResponseOption{}
	if details := errorDetails(err); details != nil {
		opts = append(opts, shared.WithDetails(details))
	}
	var eligibilityErr *domain.EligibilityError
	if errors.As(err, &eligibilityErr) {
		opts = append(opts, shared.WithReasons(eligibilityErr.Reasons))
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError turns the first struct validation failure into a
// user-friendly message.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid ID format"
	case "dive":
		return "invalid element"
	default:
		return "validation failed"
	}
}
