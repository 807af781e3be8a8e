package task

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface in memory for testing
type MockTaskStore struct {
	mutex   sync.RWMutex
	records map[uuid.UUID]*Record

	SaveFn         func(ctx context.Context, task Task) error
	ClaimFn        func(ctx context.Context, taskID uuid.UUID) (int, bool, error)
	UpdateStatusFn func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	store := &MockTaskStore{
		records: make(map[uuid.UUID]*Record),
	}

	store.SaveFn = func(ctx context.Context, task Task) error {
		store.Put(Record{
			ID:      task.ID(),
			Type:    task.Type(),
			Payload: task.Payload(),
			Status:  TaskStatusPending,
		})
		return nil
	}

	store.ClaimFn = func(ctx context.Context, taskID uuid.UUID) (int, bool, error) {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		rec, exists := store.records[taskID]
		if !exists || rec.Status != TaskStatusPending {
			return 0, false, nil
		}
		rec.Status = TaskStatusProcessing
		rec.Attempts++
		rec.UpdatedAt = time.Now()
		return rec.Attempts, true, nil
	}

	store.UpdateStatusFn = func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		rec, exists := store.records[taskID]
		if !exists {
			return nil // Simulate "not found" as a no-op for testing simplicity
		}
		rec.Status = status
		rec.ErrorMessage = errorMsg
		rec.UpdatedAt = time.Now()
		return nil
	}

	return store
}

// Put stores rec directly, bypassing SaveFn
func (s *MockTaskStore) Put(rec Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	s.records[rec.ID] = &rec
}

// Get returns a copy of the stored record
func (s *MockTaskStore) Get(taskID uuid.UUID) (Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, ok := s.records[taskID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	return s.SaveFn(ctx, task)
}

// ClaimTask claims a pending task
func (s *MockTaskStore) ClaimTask(ctx context.Context, taskID uuid.UUID) (int, bool, error) {
	return s.ClaimFn(ctx, taskID)
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status TaskStatus,
	errorMsg string,
) error {
	return s.UpdateStatusFn(ctx, taskID, status, errorMsg)
}

// GetPendingTasks retrieves up to limit tasks with "pending" status, oldest first
func (s *MockTaskStore) GetPendingTasks(ctx context.Context, limit int) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var pending []Record
	for _, rec := range s.records {
		if rec.Status == TaskStatusPending {
			pending = append(pending, *rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var processing []Record
	now := time.Now()
	for _, rec := range s.records {
		if rec.Status != TaskStatusProcessing {
			continue
		}
		if olderThan == 0 || now.Sub(rec.UpdatedAt) > olderThan {
			processing = append(processing, *rec)
		}
	}
	return processing, nil
}

// WithTx returns the same store; the mock has no transactions
func (s *MockTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}

var _ TaskStore = (*MockTaskStore)(nil)
