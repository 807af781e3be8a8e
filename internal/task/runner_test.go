package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// stubRegistry rebuilds stored records as StubTasks that run execute.
func stubRegistry(execute func(ctx context.Context) error) *Registry {
	reg := NewRegistry()
	reg.Register("stub_notification", func(rec Record) (Task, error) {
		t := NewStubTask(rec.ID, rec.Type, rec.Payload)
		if execute != nil {
			t.Run = execute
		}
		return t, nil
	})
	return reg
}

func TestTaskRunner_Submit(t *testing.T) {
	t.Parallel()

	logger := discardLogger()

	t.Run("successful submission", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		runner := NewTaskRunner(store, nil, DefaultTaskRunnerConfig(), logger)

		task := NewNotificationStub("test task")
		require.NoError(t, runner.Submit(context.Background(), task))

		rec, ok := store.Get(task.ID())
		require.True(t, ok)
		assert.Equal(t, TaskStatusPending, rec.Status)
	})

	t.Run("queue full keeps the task stored", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		config := DefaultTaskRunnerConfig()
		config.QueueSize = 1
		runner := NewTaskRunner(store, nil, config, logger)

		task1 := NewNotificationStub("task 1")
		task2 := NewNotificationStub("task 2")
		require.NoError(t, runner.Submit(context.Background(), task1))
		require.NoError(t, runner.Submit(context.Background(), task2))

		assert.ErrorIs(t, runner.Enqueue(NewNotificationStub("task 3")), ErrQueueFull)
		_, ok := store.Get(task2.ID())
		assert.True(t, ok, "task should be persisted even when the queue is full")
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		store.SaveFn = func(ctx context.Context, task Task) error {
			return errors.New("mock store error")
		}
		runner := NewTaskRunner(store, nil, DefaultTaskRunnerConfig(), logger)

		err := runner.Submit(context.Background(), NewNotificationStub("error task"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save task")
	})

	t.Run("enqueue ignores a task already queued", func(t *testing.T) {
		t.Parallel()

		runner := NewTaskRunner(NewMockTaskStore(), nil, DefaultTaskRunnerConfig(), logger)
		task := NewNotificationStub("once")
		require.NoError(t, runner.Enqueue(task))
		require.NoError(t, runner.Enqueue(task))
		assert.Len(t, runner.taskChan, 1)
	})
}

func TestTaskRunner_Start_and_Processing(t *testing.T) {
	t.Parallel()

	store := NewMockTaskStore()
	config := DefaultTaskRunnerConfig()
	config.WorkerCount = 2
	config.QueueSize = 10
	runner := NewTaskRunner(store, nil, config, discardLogger())

	done := make(chan uuid.UUID, 3)
	tasks := make([]*StubTask, 0, 3)
	for i := 0; i < 3; i++ {
		task := NewNotificationStub("test task")
		id := task.ID()
		task.Run = func(ctx context.Context) error {
			done <- id
			return nil
		}
		tasks = append(tasks, task)
	}

	require.NoError(t, runner.Start())
	defer runner.Stop()

	for _, task := range tasks {
		require.NoError(t, runner.Submit(context.Background(), task))
	}

	seen := map[uuid.UUID]bool{}
	for len(seen) < len(tasks) {
		select {
		case id := <-done:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}

	assert.Eventually(t, func() bool {
		for _, task := range tasks {
			rec, _ := store.Get(task.ID())
			if rec.Status != TaskStatusCompleted {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTaskRunner_ProcessTask(t *testing.T) {
	t.Parallel()

	t.Run("skips a task it cannot claim", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		runner := NewTaskRunner(store, nil, DefaultTaskRunnerConfig(), discardLogger())

		task := NewNotificationStub("claimed elsewhere")
		store.Put(Record{ID: task.ID(), Type: task.Type(), Status: TaskStatusProcessing})

		runner.processTask(task, 0)
		assert.Equal(t, 0, task.Runs())
	})

	t.Run("failure below max attempts returns to pending", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		config := DefaultTaskRunnerConfig()
		config.MaxAttempts = 2
		runner := NewTaskRunner(store, nil, config, discardLogger())

		task := NewNotificationStub("flaky")
		task.Run = func(ctx context.Context) error { return errors.New("smtp unavailable") }
		require.NoError(t, store.SaveTask(context.Background(), task))

		runner.processTask(task, 0)

		rec, _ := store.Get(task.ID())
		assert.Equal(t, TaskStatusPending, rec.Status)
		assert.Equal(t, 1, rec.Attempts)
		assert.Equal(t, "smtp unavailable", rec.ErrorMessage)
	})

	t.Run("failure at max attempts marks failed and calls the handler", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		config := DefaultTaskRunnerConfig()
		config.MaxAttempts = 2
		runner := NewTaskRunner(store, nil, config, discardLogger())

		var mu sync.Mutex
		var handled []uuid.UUID
		runner.SetErrorHandler(func(task Task, err error) {
			mu.Lock()
			defer mu.Unlock()
			handled = append(handled, task.ID())
		})

		task := NewNotificationStub("broken")
		task.Run = func(ctx context.Context) error { return errors.New("bad payload") }
		require.NoError(t, store.SaveTask(context.Background(), task))

		runner.processTask(task, 0)
		runner.processTask(task, 0)

		rec, _ := store.Get(task.ID())
		assert.Equal(t, TaskStatusFailed, rec.Status)
		assert.Equal(t, 2, rec.Attempts)
		assert.Equal(t, 2, task.Runs())
		mu.Lock()
		assert.Equal(t, []uuid.UUID{task.ID()}, handled)
		mu.Unlock()
	})
}

func TestTaskRunner_Poll(t *testing.T) {
	t.Parallel()

	store := NewMockTaskStore()
	runner := NewTaskRunner(store, stubRegistry(nil), DefaultTaskRunnerConfig(), discardLogger())

	// Rows written by another transaction, not through Submit.
	id := uuid.New()
	store.Put(Record{ID: id, Type: "stub_notification", Status: TaskStatusPending})
	unknown := uuid.New()
	store.Put(Record{ID: unknown, Type: "no_such_type", Status: TaskStatusPending})

	n := runner.poll(context.Background())
	assert.Equal(t, 2, n)
	assert.Len(t, runner.taskChan, 1)

	rec, _ := store.Get(unknown)
	assert.Equal(t, TaskStatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "unknown task type")
}

func TestTaskRunner_Recover(t *testing.T) {
	t.Parallel()

	store := NewMockTaskStore()
	runner := NewTaskRunner(store, stubRegistry(nil), DefaultTaskRunnerConfig(), discardLogger())

	pending := uuid.New()
	interrupted := uuid.New()
	finished := uuid.New()
	store.Put(Record{ID: pending, Type: "stub_notification", Status: TaskStatusPending})
	store.Put(Record{ID: interrupted, Type: "stub_notification", Status: TaskStatusProcessing})
	store.Put(Record{ID: finished, Type: "stub_notification", Status: TaskStatusCompleted})

	require.NoError(t, runner.Recover())

	rec, _ := store.Get(interrupted)
	assert.Equal(t, TaskStatusPending, rec.Status)
	assert.Len(t, runner.taskChan, 2)
}

func TestTaskRunner_EnqueueAfterStop(t *testing.T) {
	t.Parallel()

	runner := NewTaskRunner(NewMockTaskStore(), nil, DefaultTaskRunnerConfig(), discardLogger())
	require.NoError(t, runner.Start())
	runner.Stop()

	assert.ErrorIs(t, runner.Enqueue(NewNotificationStub("late")), ErrRunnerStopped)
}

func TestRegistry_Build(t *testing.T) {
	t.Parallel()

	reg := stubRegistry(nil)

	task, err := reg.Build(Record{ID: uuid.New(), Type: "stub_notification"})
	require.NoError(t, err)
	assert.Equal(t, "stub_notification", task.Type())

	_, err = reg.Build(Record{ID: uuid.New(), Type: "other"})
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}
