package task

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownTaskType is returned when a stored task has no registered factory.
var ErrUnknownTaskType = errors.New("unknown task type")

// Factory rebuilds an executable task from its stored record.
type Factory func(rec Record) (Task, error)

// Registry maps task types to the factories that rebuild them.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs the factory for taskType, replacing any previous one.
func (r *Registry) Register(taskType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[taskType] = f
}

// Build rebuilds the task stored in rec.
func (r *Registry) Build(rec Record) (Task, error) {
	r.mu.RLock()
	f, ok := r.factories[rec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, rec.Type)
	}
	return f(rec)
}
