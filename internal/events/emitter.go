package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// subscription is a handler and the event types it receives. No types means
// every type.
type subscription struct {
	handler EventHandler
	types   map[Type]struct{}
}

func (s subscription) wants(t Type) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// InMemoryEventEmitter delivers lifecycle events to subscribed handlers
// synchronously, in subscription order, on the caller's goroutine.
type InMemoryEventEmitter struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewInMemoryEventEmitter returns an emitter with no subscribers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With(slog.String("component", "lifecycle_emitter")),
	}
}

// RegisterHandler subscribes handler to every lifecycle event type.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.Subscribe(handler)
}

// Subscribe delivers events of the given types to handler, or every event
// when types is empty.
func (e *InMemoryEventEmitter) Subscribe(handler EventHandler, types ...Type) {
	sub := subscription{handler: handler}
	if len(types) > 0 {
		sub.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	e.mu.Lock()
	e.subs = append(e.subs, sub)
	count := len(e.subs)
	e.mu.Unlock()

	e.logger.Debug("lifecycle handler subscribed",
		slog.Int("subscriber_count", count),
		slog.Int("type_filter_size", len(types)))
}

// EmitEvent hands event to every subscriber that wants its type. A failing
// handler does not stop delivery; all failures are joined in the result.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *LifecycleEvent) error {
	e.mu.RLock()
	subs := append([]subscription(nil), e.subs...)
	e.mu.RUnlock()

	var errs []error
	delivered := 0
	for i, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		delivered++
		if err := sub.handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("lifecycle handler failed",
				slog.String("error", err.Error()),
				slog.Int("subscriber", i),
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", string(event.Type)))
			errs = append(errs, err)
		}
	}

	e.logger.Debug("lifecycle event emitted",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.Type)),
		slog.String("subject_id", event.SubjectID.String()),
		slog.Int("delivered", delivered))
	return errors.Join(errs...)
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)
