package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
)

// Submitter accepts tasks for persistence and execution
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// NotificationEventHandler turns event review outcomes into provider
// notification tasks.
type NotificationEventHandler struct {
	factory *ProviderNotificationTaskFactory
	runner  Submitter
	logger  *slog.Logger
}

// NewNotificationEventHandler creates a new handler that submits tasks built
// by factory to runner.
func NewNotificationEventHandler(
	factory *ProviderNotificationTaskFactory,
	runner Submitter,
	log *slog.Logger,
) *NotificationEventHandler {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationEventHandler{
		factory: factory,
		runner:  runner,
		logger:  log.With(slog.String("component", "notification_event_handler")),
	}
}

// HandleEvent implements events.EventHandler. Events other than approvals
// and rejections are ignored.
func (h *NotificationEventHandler) HandleEvent(ctx context.Context, event *events.LifecycleEvent) error {
	log := logger.FromContextOrDefault(ctx, h.logger)

	var outcome string
	switch event.Type {
	case events.TypeEventApproved:
		outcome = ReviewApproved
	case events.TypeEventRejected:
		outcome = ReviewRejected
	default:
		log.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var reviewed events.EventReviewed
	if err := event.UnmarshalPayload(&reviewed); err != nil {
		log.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	t, err := h.factory.CreateTask(ProviderNotificationPayload{
		EventID:    reviewed.EventID,
		ProviderID: reviewed.ProviderID,
		Outcome:    outcome,
		Reason:     reviewed.Reason,
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, t); err != nil {
		log.Error("failed to submit task",
			"error", err,
			"task_id", t.ID(),
			"event_id", reviewed.EventID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	log.Info("provider notification scheduled",
		"task_id", t.ID(),
		"event_id", reviewed.EventID,
		"outcome", outcome)
	return nil
}

var _ events.EventHandler = (*NotificationEventHandler)(nil)
