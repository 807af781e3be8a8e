package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/behaviorschool/ceu-api/internal/config"
	"github.com/behaviorschool/ceu-api/internal/domain/eligibility"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/platform/postgres"
	"github.com/behaviorschool/ceu-api/internal/platform/render"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/behaviorschool/ceu-api/internal/task"
)

// backend holds what the database-bound commands operate on.
type backend struct {
	migrate      func(ctx context.Context, command string) error
	sweeper      task.Sweeper
	certificates service.CertificateService
	verification service.VerificationService
	close        func()
}

// Seams replaced in tests.
var (
	loadConfig  = loadConfigFromEnv
	openBackend = openPostgresBackend
)

func loadConfigFromEnv() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, l, nil
}

// openPostgresBackend connects to the configured database and wires the
// services the commands need. Lifecycle events are discarded: notification
// delivery belongs to the server's task runner.
func openPostgresBackend(ctx context.Context) (*backend, error) {
	cfg, l, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := postgres.Open(ctx, cfg.Database, l)
	if err != nil {
		return nil, err
	}

	b, err := newBackend(cfg, l, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(cfg *config.Config, l *slog.Logger, db *sql.DB) (*backend, error) {
	stores := service.Stores{
		Providers:     postgres.NewPostgresProviderStore(db, l),
		Events:        postgres.NewPostgresEventStore(db, l),
		Registrations: postgres.NewPostgresRegistrationStore(db, l),
		Attendance:    postgres.NewPostgresAttendanceStore(db, l),
		Feedback:      postgres.NewPostgresFeedbackStore(db, l),
		Quizzes:       postgres.NewPostgresQuizStore(db, l),
		Certificates:  postgres.NewPostgresCertificateStore(db, l),
	}
	b, err := newServiceBackend(cfg, l, stores, store.NewDBTransactor(db))
	if err != nil {
		return nil, err
	}
	b.migrate = func(ctx context.Context, command string) error {
		return postgres.Migrate(ctx, db, l, command)
	}
	b.close = func() {
		if err := db.Close(); err != nil {
			l.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}
	return b, nil
}

// newServiceBackend builds the services over stores.
func newServiceBackend(
	cfg *config.Config,
	l *slog.Logger,
	stores service.Stores,
	tx store.Transactor,
) (*backend, error) {
	emitter := events.NopEmitter{}

	lifecycle, err := service.NewLifecycleService(stores, tx, emitter, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle service: %w", err)
	}
	providers, err := service.NewProviderService(
		stores.Providers, stores.Events, emitter, cfg.Scheduler.ApprovalValidity(), l,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider service: %w", err)
	}

	policy, err := eligibility.ParseAttemptPolicy(cfg.Certificate.AttemptPolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid attempt policy: %w", err)
	}
	evaluator, err := eligibility.NewService(policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create eligibility evaluator: %w", err)
	}
	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}
	certificates, err := service.NewCertificateService(
		stores,
		tx,
		evaluator,
		service.NotificationOutbox{},
		renderer,
		emitter,
		service.CertificateConfig{
			NumberPrefix:     cfg.Certificate.NumberPrefix,
			NumberMaxRetries: cfg.Certificate.NumberMaxRetries,
		},
		l,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate service: %w", err)
	}

	return &backend{
		sweeper:      service.NewSweepService(lifecycle, providers, l),
		certificates: certificates,
		verification: service.NewVerificationService(stores.Certificates, l),
		close:        func() {},
	}, nil
}

// withBackend opens the backend, runs fn and closes it.
func withBackend(ctx context.Context, fn func(b *backend) error) error {
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()
	return fn(b)
}
