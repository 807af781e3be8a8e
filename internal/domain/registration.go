package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// confirmationCodeLength is the length of the code shown to participants after sign-up.
const confirmationCodeLength = 8

// Registration errors
var (
	ErrRegistrationCancelled = errors.New("registration has been cancelled")
)

// Registration links a participant to an event.
type Registration struct {
	ID                uuid.UUID  `json:"id"`
	EventID           uuid.UUID  `json:"event_id"`
	ParticipantID     uuid.UUID  `json:"participant_id"`
	ParticipantName   string     `json:"participant_name"`
	ParticipantBACBID string     `json:"participant_bacb_id,omitempty"`
	ParticipantEmail  string     `json:"participant_email"`
	ConfirmationCode  string     `json:"confirmation_code"`
	Cancelled         bool       `json:"cancelled"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	RegisteredAt      time.Time  `json:"registered_at"`
}

// NewRegistration creates a registration with a fresh confirmation code.
func NewRegistration(
	eventID, participantID uuid.UUID,
	name, bacbID, email string,
	now time.Time,
) (*Registration, error) {
	code, err := randomToken(confirmationCodeLength)
	if err != nil {
		return nil, err
	}

	r := &Registration{
		ID:                uuid.New(),
		EventID:           eventID,
		ParticipantID:     participantID,
		ParticipantName:   strings.TrimSpace(name),
		ParticipantBACBID: strings.TrimSpace(bacbID),
		ParticipantEmail:  strings.TrimSpace(email),
		ConfirmationCode:  code,
		RegisteredAt:      now.UTC(),
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks every registration field and reports all violations together.
func (r *Registration) Validate() error {
	v := &ValidationError{Entity: "registration"}
	if r.ID == uuid.Nil {
		v.Add("id", "is required")
	}
	if r.EventID == uuid.Nil {
		v.Add("event_id", "is required")
	}
	if r.ParticipantID == uuid.Nil {
		v.Add("participant_id", "is required")
	}
	if r.ParticipantName == "" {
		v.Add("participant_name", "is required")
	}
	if r.ParticipantEmail == "" {
		v.Add("participant_email", "is required")
	} else if _, err := mail.ParseAddress(r.ParticipantEmail); err != nil {
		v.Add("participant_email", "is not a valid email address")
	}
	return v.OrNil()
}

// Cancel sets the cancellation flag. Cancelling twice is a no-op.
func (r *Registration) Cancel(now time.Time) {
	if r.Cancelled {
		return
	}
	t := now.UTC()
	r.Cancelled = true
	r.CancelledAt = &t
}
