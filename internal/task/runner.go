package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/google/uuid"
)

// Runner errors
var (
	ErrQueueFull     = errors.New("task queue is full")
	ErrRunnerStopped = errors.New("task runner is stopped")
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	// and the batch size of each poll
	QueueSize int

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration

	// PollInterval defines how often the store is polled for pending tasks
	// If zero, defaults to 10 seconds
	PollInterval time.Duration

	// MaxAttempts is how many times a task runs before it is marked failed
	// If zero, defaults to 5
	MaxAttempts int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		PollInterval:           10 * time.Second,
		MaxAttempts:            5,
	}
}

// TaskRunner manages background task processing
type TaskRunner struct {
	store      TaskStore
	registry   *Registry
	taskChan   chan Task
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	mu      sync.Mutex
	queued  map[uuid.UUID]struct{}
	stopped bool
}

// NewTaskRunner creates a new TaskRunner. The registry rebuilds tasks that
// are read back from the store.
func NewTaskRunner(store TaskStore, registry *Registry, config TaskRunnerConfig, log *slog.Logger) *TaskRunner {
	defaults := DefaultTaskRunnerConfig()
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = defaults.StuckTaskCheckInterval
	}
	if config.PollInterval == 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "task_runner"))

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:      store,
		registry:   registry,
		taskChan:   make(chan Task, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     log,
		queued:     make(map[uuid.UUID]struct{}),
		errHandler: func(task Task, err error) {
			log.Error("task failed permanently",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler sets the function called when a task exhausts its attempts
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists a task and queues it for execution. A full queue is not an
// error: the task is stored and the poller will pick it up.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.Enqueue(task); err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Warn("task saved but not queued",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"reason", err.Error())
	}
	return nil
}

// Enqueue adds an already persisted task to the in-memory queue. Tasks that
// are already queued are ignored.
func (r *TaskRunner) Enqueue(task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}
	if _, ok := r.queued[task.ID()]; ok {
		return nil
	}

	select {
	case r.taskChan <- task:
		r.queued[task.ID()] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Start recovers unfinished tasks and starts the workers, the poller and
// the stuck task monitor
func (r *TaskRunner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(2)
	go r.poller()
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner. Tasks still in the queue stay
// pending in the store.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()

	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// Recover loads any unfinished tasks from the database
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx, r.config.QueueSize)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	// Tasks left in processing were interrupted by a crash.
	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, rec := range pendingTasks {
		r.requeue(ctx, rec)
	}

	for _, rec := range processingTasks {
		if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", rec.ID,
				"task_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}

	return nil
}

// requeue rebuilds a stored task and queues it. It reports false when the
// queue is full.
func (r *TaskRunner) requeue(ctx context.Context, rec Record) bool {
	task, err := r.registry.Build(rec)
	if err != nil {
		r.logger.Error("failed to rebuild task",
			"task_id", rec.ID,
			"task_type", rec.Type,
			"error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark task failed", "task_id", rec.ID, "error", updateErr)
		}
		return true
	}

	if err := r.Enqueue(task); err != nil {
		r.logger.Debug("failed to requeue task",
			"task_id", rec.ID,
			"task_type", rec.Type,
			"reason", err.Error())
		return false
	}
	return true
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task := <-r.taskChan:
			r.processTask(task, id)

			r.mu.Lock()
			delete(r.queued, task.ID())
			r.mu.Unlock()
		}
	}
}

// processTask claims and executes a single task
func (r *TaskRunner) processTask(task Task, workerID int) {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(context.Background(), log)

	attempts, claimed, err := r.store.ClaimTask(ctx, task.ID())
	if err != nil {
		log.Error("failed to claim task", "error", err)
		return
	}
	if !claimed {
		log.Debug("task already claimed or finished")
		return
	}

	log.Info("processing task", "attempt", attempts)

	err = task.Execute(ctx)
	if err == nil {
		log.Info("task completed successfully")
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, ""); updateErr != nil {
			log.Error("failed to update task status to completed", "error", updateErr)
		}
		return
	}

	if attempts < r.config.MaxAttempts {
		log.Warn("task execution failed, will retry",
			"error", err,
			"attempt", attempts,
			"max_attempts", r.config.MaxAttempts)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusPending, err.Error()); updateErr != nil {
			log.Error("failed to return task to pending", "error", updateErr)
		}
		return
	}

	log.Error("task execution failed", "error", err, "attempt", attempts)
	if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
		log.Error("failed to update task status to failed", "error", updateErr)
	}
	r.errHandler(task, err)
}

// poller periodically queues pending tasks written outside Submit, such as
// outbox rows committed by the certificate issuer or retries.
func (r *TaskRunner) poller() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.poll(r.ctx)
		}
	}
}

// poll queues one batch of pending tasks and returns how many were read.
func (r *TaskRunner) poll(ctx context.Context) int {
	records, err := r.store.GetPendingTasks(ctx, r.config.QueueSize)
	if err != nil {
		r.logger.Error("failed to poll pending tasks", "error", err)
		return 0
	}
	for _, rec := range records {
		if !r.requeue(ctx, rec) {
			break
		}
	}
	return len(records)
}

// stuckTaskMonitor periodically checks for tasks that have been in "processing"
// state for too long and resets them
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}
			if len(stuckTasks) == 0 {
				continue
			}

			r.logger.Info("found stuck tasks", "count", len(stuckTasks))
			for _, rec := range stuckTasks {
				if err := r.store.UpdateTaskStatus(ctx, rec.ID, TaskStatusPending,
					"Reset after being stuck in processing state"); err != nil {
					r.logger.Error("failed to reset stuck task status",
						"task_id", rec.ID,
						"task_type", rec.Type,
						"error", err)
					continue
				}
				r.requeue(ctx, rec)
			}
		}
	}
}
