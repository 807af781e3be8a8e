package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names a kind of lifecycle event
type Type string

// Lifecycle event types
const (
	TypeEventSubmitted     Type = "event.submitted"
	TypeEventApproved      Type = "event.approved"
	TypeEventRejected      Type = "event.rejected"
	TypeEventStarted       Type = "event.started"
	TypeEventCompleted     Type = "event.completed"
	TypeEventArchived      Type = "event.archived"
	TypeCertificateIssued  Type = "certificate.issued"
	TypeCertificateRevoked Type = "certificate.revoked"
	TypeProviderLapsed     Type = "provider.lapsed"
)

// LifecycleEvent records a committed state change.
type LifecycleEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the kind of change
	Type Type `json:"type"`

	// SubjectID is the id of the entity that changed
	SubjectID uuid.UUID `json:"subject_id"`

	// Payload carries type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// EventReviewed is the payload of TypeEventApproved and TypeEventRejected.
type EventReviewed struct {
	EventID    uuid.UUID `json:"event_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Reason     string    `json:"reason,omitempty"`
}

// CertificateChanged is the payload of TypeCertificateIssued and
// TypeCertificateRevoked.
type CertificateChanged struct {
	CertificateID     uuid.UUID `json:"certificate_id"`
	CertificateNumber string    `json:"certificate_number"`
	RegistrationID    uuid.UUID `json:"registration_id"`
}

// ProviderLapsed is the payload of TypeProviderLapsed.
type ProviderLapsed struct {
	ProviderID uuid.UUID `json:"provider_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NewLifecycleEvent creates an event of type t about subjectID.
func NewLifecycleEvent(t Type, subjectID uuid.UUID, payload interface{}) (*LifecycleEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &LifecycleEvent{
		ID:        uuid.New(),
		Type:      t,
		SubjectID: subjectID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *LifecycleEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Handlers ignore event types they do not care about.
	HandleEvent(ctx context.Context, event *LifecycleEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *LifecycleEvent) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *LifecycleEvent) error { return nil }
