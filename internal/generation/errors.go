package generation

import "errors"

// Common errors returned by drafting adapters
var (
	// ErrDraftFailed is returned when drafting fails for any general reason
	ErrDraftFailed = errors.New("failed to draft quiz questions")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error while drafting questions")

	// ErrInvalidConfig is returned when the adapter configuration is invalid
	ErrInvalidConfig = errors.New("invalid drafting configuration")
)

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientFailure)
}
