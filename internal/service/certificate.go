package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/domain/eligibility"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/behaviorschool/ceu-api/internal/task"
	"github.com/google/uuid"
)

// DefaultNumberMaxRetries bounds certificate number regeneration after a
// collision.
const DefaultNumberMaxRetries = 5

// CertificateConfig controls certificate numbering.
type CertificateConfig struct {
	NumberPrefix     string
	NumberMaxRetries int
}

// Renderer turns a certificate into a printable document.
type Renderer interface {
	RenderCertificate(certificate *domain.Certificate) ([]byte, error)
}

// Enqueuer hands a persisted task to the runner for immediate execution.
type Enqueuer interface {
	Enqueue(t task.Task) error
}

// NotificationOutbox stores certificate notification tasks in the issuance
// transaction. Queue is optional; tasks it does not accept are found by the
// runner's poller.
type NotificationOutbox struct {
	Tasks   task.TaskStore
	Factory *task.CertificateNotificationTaskFactory
	Queue   Enqueuer
}

// CertificateService issues, lists, renders and revokes certificates.
type CertificateService interface {
	// IssueOrGet returns the registration's certificate, issuing it when the
	// registration is eligible and none exists yet. An ineligible
	// registration yields *domain.EligibilityError and nothing is written.
	IssueOrGet(ctx context.Context, registrationID uuid.UUID) (*domain.Certificate, error)

	// IssueForParticipant resolves the participant's registration for the
	// event and calls IssueOrGet.
	IssueForParticipant(ctx context.Context, eventID, participantID uuid.UUID) (*domain.Certificate, error)

	// GetCertificate retrieves a certificate by ID.
	GetCertificate(ctx context.Context, certificateID uuid.UUID) (*domain.Certificate, error)

	// ListForParticipant returns the participant's certificates, optionally
	// restricted to one event.
	ListForParticipant(ctx context.Context, participantID uuid.UUID, eventID *uuid.UUID) ([]*domain.Certificate, error)

	// Render produces the printable document of a certificate.
	Render(ctx context.Context, certificateID uuid.UUID) ([]byte, error)

	// Revoke marks a certificate revoked. Revoking twice keeps the first
	// revocation details.
	Revoke(ctx context.Context, number, reason string, revokedBy uuid.UUID) (*domain.Certificate, error)
}

type certificateServiceImpl struct {
	stores    Stores
	tx        store.Transactor
	evaluator eligibility.Service
	outbox    NotificationOutbox
	renderer  Renderer
	emitter   events.EventEmitter
	config    CertificateConfig
	logger    *slog.Logger
}

var _ CertificateService = (*certificateServiceImpl)(nil)

// NewCertificateService creates a CertificateService.
func NewCertificateService(
	stores Stores,
	tx store.Transactor,
	evaluator eligibility.Service,
	outbox NotificationOutbox,
	renderer Renderer,
	emitter events.EventEmitter,
	config CertificateConfig,
	logger *slog.Logger,
) (CertificateService, error) {
	if err := stores.Validate(); err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transactor cannot be nil")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer cannot be nil")
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if config.NumberPrefix == "" {
		config.NumberPrefix = domain.DefaultCertificatePrefix
	}
	if config.NumberMaxRetries <= 0 {
		config.NumberMaxRetries = DefaultNumberMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &certificateServiceImpl{
		stores:    stores,
		tx:        tx,
		evaluator: evaluator,
		outbox:    outbox,
		renderer:  renderer,
		emitter:   emitter,
		config:    config,
		logger:    logger.With(slog.String("component", "certificate_service")),
	}, nil
}

// IssueOrGet implements CertificateService.IssueOrGet
//
// The evaluator runs first, inside the transaction, so a registration that
// lost eligibility gets its reasons even if a certificate exists. The insert
// relies on the unique indexes: a conflict on registration_id returns the
// committed winner, a conflict on the number alone regenerates it.
func (s *certificateServiceImpl) IssueOrGet(ctx context.Context, registrationID uuid.UUID) (*domain.Certificate, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		cert         *domain.Certificate
		created      bool
		notification task.Task
	)
	err := s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		stores := s.stores.WithTx(tx)

		snap, err := loadSnapshot(ctx, stores, registrationID)
		if err != nil {
			return err
		}
		result, err := s.evaluator.Evaluate(snap)
		if err != nil {
			return NewServiceError("certificate", "issue", "evaluation failed", err)
		}
		if !result.Eligible {
			return result.Err(snap)
		}

		existing, err := stores.Certificates.GetByRegistrationID(ctx, registrationID)
		if err == nil {
			cert = existing
			return nil
		}
		if !errors.Is(err, store.ErrCertificateNotFound) {
			return NewServiceError("certificate", "issue", "failed to look up certificate", err)
		}

		provider, err := stores.Providers.GetByID(ctx, snap.Event.ProviderID)
		if err != nil {
			return notFoundOr(err, store.ErrProviderNotFound, "certificate", "issue")
		}

		for attempt := 1; attempt <= s.config.NumberMaxRetries; attempt++ {
			now := time.Now().UTC()
			number, err := domain.GenerateCertificateNumber(s.config.NumberPrefix, now)
			if err != nil {
				return NewServiceError("certificate", "issue", "failed to generate number", err)
			}
			candidate, err := domain.NewCertificate(number, snap.Registration, snap.Event, provider, now)
			if err != nil {
				return NewServiceError("certificate", "issue", "failed to build certificate", err)
			}

			inserted, err := stores.Certificates.CreateIfAbsent(ctx, candidate)
			if err != nil {
				return NewServiceError("certificate", "issue", "failed to save certificate", err)
			}
			if inserted {
				cert, created = candidate, true
				notification, err = s.saveNotification(ctx, tx, candidate)
				return err
			}

			winner, err := stores.Certificates.GetByRegistrationID(ctx, registrationID)
			if err == nil {
				log.Debug("concurrent issuance won by another request",
					slog.String("registration_id", registrationID.String()))
				cert = winner
				return nil
			}
			if !errors.Is(err, store.ErrCertificateNotFound) {
				return NewServiceError("certificate", "issue", "failed to re-read certificate", err)
			}
			log.Warn("certificate number collided, regenerating",
				slog.Int("attempt", attempt),
				slog.String("registration_id", registrationID.String()))
		}
		return ErrNumberSpaceExhausted
	})
	if err != nil {
		var ineligible *domain.EligibilityError
		if errors.As(err, &ineligible) {
			log.Info("certificate refused",
				slog.String("registration_id", registrationID.String()),
				slog.Any("reasons", ineligible.Reasons))
		} else {
			log.Error("certificate issuance failed",
				slog.String("error", err.Error()),
				slog.String("registration_id", registrationID.String()))
		}
		return nil, err
	}

	if created {
		log.Info("certificate issued",
			slog.String("certificate_id", cert.ID.String()),
			slog.String("certificate_number", cert.CertificateNumber),
			slog.String("registration_id", registrationID.String()))
		s.enqueue(ctx, notification)
		s.emit(ctx, events.TypeCertificateIssued, cert)
	}
	return cert, nil
}

// IssueForParticipant implements CertificateService.IssueForParticipant
func (s *certificateServiceImpl) IssueForParticipant(
	ctx context.Context,
	eventID, participantID uuid.UUID,
) (*domain.Certificate, error) {
	reg, err := s.stores.Registrations.GetByEventAndParticipant(ctx, eventID, participantID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrRegistrationNotFound, "certificate", "issue")
	}
	return s.IssueOrGet(ctx, reg.ID)
}

// GetCertificate implements CertificateService.GetCertificate
func (s *certificateServiceImpl) GetCertificate(
	ctx context.Context,
	certificateID uuid.UUID,
) (*domain.Certificate, error) {
	cert, err := s.stores.Certificates.GetByID(ctx, certificateID)
	if err != nil {
		return nil, notFoundOr(err, store.ErrCertificateNotFound, "certificate", "get")
	}
	return cert, nil
}

// ListForParticipant implements CertificateService.ListForParticipant
func (s *certificateServiceImpl) ListForParticipant(
	ctx context.Context,
	participantID uuid.UUID,
	eventID *uuid.UUID,
) ([]*domain.Certificate, error) {
	list, err := s.stores.Certificates.ListByParticipant(ctx, participantID, eventID)
	if err != nil {
		return nil, NewServiceError("certificate", "list", "failed to list certificates", err)
	}
	return list, nil
}

// Render implements CertificateService.Render
func (s *certificateServiceImpl) Render(ctx context.Context, certificateID uuid.UUID) ([]byte, error) {
	cert, err := s.GetCertificate(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.RenderCertificate(cert)
	if err != nil {
		return nil, NewServiceError("certificate", "render", "failed to render certificate", err)
	}
	return doc, nil
}

// Revoke implements CertificateService.Revoke
func (s *certificateServiceImpl) Revoke(
	ctx context.Context,
	number, reason string,
	revokedBy uuid.UUID,
) (*domain.Certificate, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		cert    *domain.Certificate
		changed bool
	)
	err := s.tx.InTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		certs := s.stores.Certificates.WithTx(tx)
		c, err := certs.GetByNumber(ctx, domain.NormalizeCertificateNumber(number))
		if err != nil {
			return notFoundOr(err, store.ErrCertificateNotFound, "certificate", "revoke")
		}

		wasRevoked := c.Status == domain.CertificateStatusRevoked
		if err := c.Revoke(reason, revokedBy, time.Now()); err != nil {
			return domain.NewValidationError("reason", err.Error())
		}
		cert = c
		if wasRevoked {
			return nil
		}
		if err := certs.Revoke(ctx, c); err != nil {
			return notFoundOr(err, store.ErrCertificateNotFound, "certificate", "revoke")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log.Info("certificate revoked",
			slog.String("certificate_number", cert.CertificateNumber),
			slog.String("revoked_by", revokedBy.String()))
		s.emit(ctx, events.TypeCertificateRevoked, cert)
	}
	return cert, nil
}

// saveNotification writes the outbox row in the issuance transaction.
func (s *certificateServiceImpl) saveNotification(
	ctx context.Context,
	tx *sql.Tx,
	cert *domain.Certificate,
) (task.Task, error) {
	if s.outbox.Tasks == nil || s.outbox.Factory == nil {
		return nil, nil
	}
	t, err := s.outbox.Factory.CreateTask(cert.ID)
	if err != nil {
		return nil, NewServiceError("certificate", "issue", "failed to build notification task", err)
	}
	if err := s.outbox.Tasks.WithTx(tx).SaveTask(ctx, t); err != nil {
		return nil, NewServiceError("certificate", "issue", "failed to save notification task", err)
	}
	return t, nil
}

// enqueue hands a committed notification to the runner. The poller picks up
// anything the queue does not accept.
func (s *certificateServiceImpl) enqueue(ctx context.Context, t task.Task) {
	if t == nil || s.outbox.Queue == nil {
		return
	}
	if err := s.outbox.Queue.Enqueue(t); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("notification left for the poller",
			slog.String("task_id", t.ID().String()),
			slog.String("error", err.Error()))
	}
}

func (s *certificateServiceImpl) emit(ctx context.Context, t events.Type, cert *domain.Certificate) {
	le, err := events.NewLifecycleEvent(t, cert.ID, events.CertificateChanged{
		CertificateID:     cert.ID,
		CertificateNumber: cert.CertificateNumber,
		RegistrationID:    cert.RegistrationID,
	})
	if err == nil {
		err = s.emitter.EmitEvent(ctx, le)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to emit certificate event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(t)))
	}
}
