package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/platform/email"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// Review outcomes carried by provider notifications
const (
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// ProviderNotificationPayload is the stored payload of a provider
// notification task.
type ProviderNotificationPayload struct {
	EventID    uuid.UUID `json:"event_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
}

// ProviderNotificationTaskFactory builds provider notification tasks.
type ProviderNotificationTaskFactory struct {
	providers store.ProviderStore
	events    store.EventStore
	sender    email.Sender
	logger    *slog.Logger
}

// NewProviderNotificationTaskFactory creates a factory.
func NewProviderNotificationTaskFactory(
	providers store.ProviderStore,
	events store.EventStore,
	sender email.Sender,
	log *slog.Logger,
) *ProviderNotificationTaskFactory {
	if log == nil {
		log = slog.Default()
	}
	return &ProviderNotificationTaskFactory{
		providers: providers,
		events:    events,
		sender:    sender,
		logger:    log.With(slog.String("component", "provider_notification_task")),
	}
}

// CreateTask creates a new pending task.
func (f *ProviderNotificationTaskFactory) CreateTask(p ProviderNotificationPayload) (*ProviderNotificationTask, error) {
	if p.Outcome != ReviewApproved && p.Outcome != ReviewRejected {
		return nil, fmt.Errorf("unknown review outcome %q", p.Outcome)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider notification payload: %w", err)
	}
	return &ProviderNotificationTask{id: uuid.New(), data: p, payload: payload, status: TaskStatusPending, factory: f}, nil
}

// FromRecord rebuilds a stored task. It is registered with the Registry.
func (f *ProviderNotificationTaskFactory) FromRecord(rec Record) (Task, error) {
	var p ProviderNotificationPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid provider notification payload: %w", err)
	}
	return &ProviderNotificationTask{id: rec.ID, data: p, payload: rec.Payload, status: rec.Status, factory: f}, nil
}

// ProviderNotificationTask emails a provider's contact address the outcome
// of an event review.
type ProviderNotificationTask struct {
	id      uuid.UUID
	data    ProviderNotificationPayload
	payload []byte
	status  TaskStatus
	factory *ProviderNotificationTaskFactory
}

// ID returns the task's unique identifier
func (t *ProviderNotificationTask) ID() uuid.UUID { return t.id }

// Type returns TaskTypeProviderNotification
func (t *ProviderNotificationTask) Type() string { return TaskTypeProviderNotification }

// Payload returns the encoded ProviderNotificationPayload
func (t *ProviderNotificationTask) Payload() []byte { return t.payload }

// Status returns the status the task was created or loaded with
func (t *ProviderNotificationTask) Status() TaskStatus { return t.status }

// Execute implements Task. Providers without a contact address are skipped.
func (t *ProviderNotificationTask) Execute(ctx context.Context) error {
	f := t.factory
	log := logger.FromContextOrDefault(ctx, f.logger).With(
		"event_id", t.data.EventID,
		"provider_id", t.data.ProviderID,
		"outcome", t.data.Outcome)

	provider, err := f.providers.GetByID(ctx, t.data.ProviderID)
	if err != nil {
		return fmt.Errorf("failed to load provider: %w", err)
	}
	if provider.ContactEmail == "" {
		log.Info("provider has no contact email, skipping notification")
		return nil
	}

	event, err := f.events.GetByID(ctx, t.data.EventID)
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	template := email.TemplateEventApproved
	if t.data.Outcome == ReviewRejected {
		template = email.TemplateEventRejected
	}

	msg := email.Message{
		To:       provider.ContactEmail,
		Template: template,
		Data: map[string]any{
			"provider_name": provider.ProviderName,
			"event_title":   event.Title,
			"reason":        t.data.Reason,
		},
		IdempotencyKey: t.id.String(),
	}
	if err := f.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send provider email: %w", err)
	}

	log.Info("provider notification sent")
	return nil
}
