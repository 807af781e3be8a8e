package task

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task type constants
const (
	// TaskTypeCertificateNotification emails a participant their new certificate.
	TaskTypeCertificateNotification = "certificate_notification"

	// TaskTypeProviderNotification emails a provider the outcome of an event review.
	TaskTypeProviderNotification = "provider_notification"
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() TaskStatus

	// Execute runs the task logic. It must be safe to run more than once.
	Execute(ctx context.Context) error
}

// Record is a task row as stored.
type Record struct {
	ID           uuid.UUID
	Type         string
	Payload      []byte
	Status       TaskStatus
	ErrorMessage string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	// SaveTask persists a task in pending status
	SaveTask(ctx context.Context, task Task) error

	// ClaimTask moves a pending task to processing and increments its attempt
	// count. claimed is false when the task was not pending, which means
	// another worker owns it or it already finished.
	ClaimTask(ctx context.Context, taskID uuid.UUID) (attempts int, claimed bool, err error)

	// UpdateTaskStatus updates the status of a task
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// GetPendingTasks retrieves up to limit tasks with "pending" status, oldest first
	GetPendingTasks(ctx context.Context, limit int) ([]Record, error)

	// GetProcessingTasks retrieves tasks with "processing" status
	// If olderThan is non-zero, only returns tasks that have been in this state
	// longer than the specified duration
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error)

	// WithTx returns a TaskStore that uses the provided transaction, so that a
	// task row can be committed together with the change that caused it.
	WithTx(tx *sql.Tx) TaskStore
}
