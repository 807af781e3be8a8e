package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/api/middleware"
	"github.com/behaviorschool/ceu-api/internal/config"
	"github.com/behaviorschool/ceu-api/internal/domain/eligibility"
	"github.com/behaviorschool/ceu-api/internal/domain/grading"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/platform/email"
	"github.com/behaviorschool/ceu-api/internal/platform/gemini"
	"github.com/behaviorschool/ceu-api/internal/platform/postgres"
	"github.com/behaviorschool/ceu-api/internal/platform/render"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/service/auth"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/behaviorschool/ceu-api/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	stores    service.Stores
	taskStore task.TaskStore

	jwtService    auth.JWTService
	lifecycle     service.LifecycleService
	participation service.ParticipationService
	quizzes       service.QuizService
	eligibility   service.EligibilityService
	certificates  service.CertificateService
	verification  service.VerificationService
	providers     service.ProviderService

	eventEmitter *events.InMemoryEventEmitter
	verifyLimits *middleware.RateLimiter

	taskRunner *task.TaskRunner
	scheduler  *task.Scheduler
}

// newApplication creates a new application instance with all dependencies initialized.
// The task runner is started here so that tasks recovered from the store are
// processed before the first request arrives.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		stores: newPostgresStores(db, logger),
	}
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	tx := store.NewDBTransactor(db)

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}
	sender, err := email.NewLogSender(cfg.Email.FromAddress, renderer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email sender: %w", err)
	}

	certificateTasks := task.NewCertificateNotificationTaskFactory(
		app.stores.Certificates,
		app.stores.Registrations,
		sender,
		cfg.Certificate.VerifyBaseURL,
		logger,
	)
	providerTasks := task.NewProviderNotificationTaskFactory(
		app.stores.Providers,
		app.stores.Events,
		sender,
		logger,
	)
	app.taskRunner, err = setupTaskRunner(app, certificateTasks, providerTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to setup task runner: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.Subscribe(task.NewNotificationEventHandler(providerTasks, app.taskRunner, logger),
		events.TypeEventApproved, events.TypeEventRejected)

	policy, err := eligibility.ParseAttemptPolicy(cfg.Certificate.AttemptPolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid attempt policy: %w", err)
	}
	evaluator, err := eligibility.NewService(policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create eligibility evaluator: %w", err)
	}

	drafter, err := newQuizDrafter(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	if err := app.initServices(tx, evaluator, drafter, service.NotificationOutbox{
		Tasks:   app.taskStore,
		Factory: certificateTasks,
		Queue:   app.taskRunner,
	}, renderer); err != nil {
		return nil, err
	}

	sweeper := service.NewSweepService(app.lifecycle, app.providers, logger)
	app.scheduler = task.NewScheduler(sweeper, cfg.Scheduler.Interval(), logger)
	app.verifyLimits = middleware.NewRateLimiter(cfg.RateLimit.VerifyRPS, cfg.RateLimit.VerifyBurst)

	logger.Info("application initialized successfully",
		slog.String("attempt_policy", string(policy)),
		slog.Bool("quiz_drafting_enabled", drafter != nil))
	return app, nil
}

func (app *application) initServices(
	tx store.Transactor,
	evaluator eligibility.Service,
	drafter service.QuizDrafter,
	outbox service.NotificationOutbox,
	renderer service.Renderer,
) error {
	cfg, logger := app.config, app.logger

	var err error
	if app.lifecycle, err = service.NewLifecycleService(app.stores, tx, app.eventEmitter, logger); err != nil {
		return fmt.Errorf("failed to create lifecycle service: %w", err)
	}
	if app.participation, err = service.NewParticipationService(app.stores, tx, logger); err != nil {
		return fmt.Errorf("failed to create participation service: %w", err)
	}

	grader := grading.NewServiceWithParams(grading.NewParams(cfg.Certificate.PassThreshold))
	if app.quizzes, err = service.NewQuizService(
		app.stores, tx, grader, drafter, cfg.Certificate.PassThreshold, logger,
	); err != nil {
		return fmt.Errorf("failed to create quiz service: %w", err)
	}
	if app.eligibility, err = service.NewEligibilityService(app.stores, evaluator, logger); err != nil {
		return fmt.Errorf("failed to create eligibility service: %w", err)
	}
	if app.certificates, err = service.NewCertificateService(
		app.stores,
		tx,
		evaluator,
		outbox,
		renderer,
		app.eventEmitter,
		service.CertificateConfig{
			NumberPrefix:     cfg.Certificate.NumberPrefix,
			NumberMaxRetries: cfg.Certificate.NumberMaxRetries,
		},
		logger,
	); err != nil {
		return fmt.Errorf("failed to create certificate service: %w", err)
	}
	if app.providers, err = service.NewProviderService(
		app.stores.Providers, app.stores.Events, app.eventEmitter, cfg.Scheduler.ApprovalValidity(), logger,
	); err != nil {
		return fmt.Errorf("failed to create provider service: %w", err)
	}
	app.verification = service.NewVerificationService(app.stores.Certificates, logger)
	return nil
}

// newPostgresStores binds every repository to db.
func newPostgresStores(db *sql.DB, logger *slog.Logger) service.Stores {
	return service.Stores{
		Providers:     postgres.NewPostgresProviderStore(db, logger),
		Events:        postgres.NewPostgresEventStore(db, logger),
		Registrations: postgres.NewPostgresRegistrationStore(db, logger),
		Attendance:    postgres.NewPostgresAttendanceStore(db, logger),
		Feedback:      postgres.NewPostgresFeedbackStore(db, logger),
		Quizzes:       postgres.NewPostgresQuizStore(db, logger),
		Certificates:  postgres.NewPostgresCertificateStore(db, logger),
	}
}

// newQuizDrafter returns nil when no Gemini key is configured so that the
// quiz service reports drafting as unavailable.
func newQuizDrafter(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (service.QuizDrafter, error) {
	if !cfg.Enabled() {
		logger.Info("quiz drafting disabled: no Gemini API key configured")
		return nil, nil
	}
	drafter, err := gemini.NewQuizDrafter(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize quiz drafter: %w", err)
	}
	logger.Info("quiz drafter initialized", slog.String("model", cfg.ModelName))
	return drafter, nil
}

// Run starts the scheduler and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (app *application) Run(ctx context.Context) error {
	app.scheduler.Start(ctx)

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// setupTaskRunner registers the task factories and starts the background
// task processor, which also recovers unfinished tasks.
func setupTaskRunner(
	app *application,
	certificateTasks *task.CertificateNotificationTaskFactory,
	providerTasks *task.ProviderNotificationTaskFactory,
) (*task.TaskRunner, error) {
	registry := task.NewRegistry()
	registry.Register(task.TaskTypeCertificateNotification, certificateTasks.FromRecord)
	registry.Register(task.TaskTypeProviderNotification, providerTasks.FromRecord)

	taskRunner := task.NewTaskRunner(app.taskStore, registry, task.TaskRunnerConfig{
		QueueSize:    app.config.Task.QueueSize,
		WorkerCount:  app.config.Task.WorkerCount,
		StuckTaskAge: app.config.Task.StuckTaskAge(),
		PollInterval: app.config.Task.PollInterval(),
		MaxAttempts:  app.config.Task.MaxAttempts,
	}, app.logger)

	if err := taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}
	return taskRunner, nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}
	app.logger.Info("application shutdown completed")
}
