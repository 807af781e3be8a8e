package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/platform/email"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
)

// CertificateNotificationPayload is the stored payload of a certificate
// notification task.
type CertificateNotificationPayload struct {
	CertificateID uuid.UUID `json:"certificate_id"`
}

// CertificateNotificationTaskFactory builds certificate notification tasks
// bound to their dependencies.
type CertificateNotificationTaskFactory struct {
	certificates  store.CertificateStore
	registrations store.RegistrationStore
	sender        email.Sender
	verifyBaseURL string
	logger        *slog.Logger
}

// NewCertificateNotificationTaskFactory creates a factory. verifyBaseURL is
// the public verification URL prefix included in the email.
func NewCertificateNotificationTaskFactory(
	certificates store.CertificateStore,
	registrations store.RegistrationStore,
	sender email.Sender,
	verifyBaseURL string,
	log *slog.Logger,
) *CertificateNotificationTaskFactory {
	if log == nil {
		log = slog.Default()
	}
	return &CertificateNotificationTaskFactory{
		certificates:  certificates,
		registrations: registrations,
		sender:        sender,
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		logger:        log.With(slog.String("component", "certificate_notification_task")),
	}
}

// CreateTask creates a new pending task for certificateID.
func (f *CertificateNotificationTaskFactory) CreateTask(certificateID uuid.UUID) (*CertificateNotificationTask, error) {
	payload, err := json.Marshal(CertificateNotificationPayload{CertificateID: certificateID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode certificate notification payload: %w", err)
	}
	return f.build(uuid.New(), certificateID, payload, TaskStatusPending), nil
}

// FromRecord rebuilds a stored task. It is registered with the Registry.
func (f *CertificateNotificationTaskFactory) FromRecord(rec Record) (Task, error) {
	var p CertificateNotificationPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid certificate notification payload: %w", err)
	}
	if p.CertificateID == uuid.Nil {
		return nil, fmt.Errorf("certificate notification payload has no certificate id")
	}
	return f.build(rec.ID, p.CertificateID, rec.Payload, rec.Status), nil
}

func (f *CertificateNotificationTaskFactory) build(
	id, certificateID uuid.UUID,
	payload []byte,
	status TaskStatus,
) *CertificateNotificationTask {
	return &CertificateNotificationTask{
		id:            id,
		certificateID: certificateID,
		payload:       payload,
		status:        status,
		factory:       f,
	}
}

// CertificateNotificationTask emails a participant that their certificate
// was issued. The certificate's notified_at claim makes delivery happen once
// per certificate even when the task itself runs again.
type CertificateNotificationTask struct {
	id            uuid.UUID
	certificateID uuid.UUID
	payload       []byte
	status        TaskStatus
	factory       *CertificateNotificationTaskFactory
}

// ID returns the task's unique identifier
func (t *CertificateNotificationTask) ID() uuid.UUID { return t.id }

// Type returns TaskTypeCertificateNotification
func (t *CertificateNotificationTask) Type() string { return TaskTypeCertificateNotification }

// Payload returns the encoded CertificateNotificationPayload
func (t *CertificateNotificationTask) Payload() []byte { return t.payload }

// Status returns the status the task was created or loaded with
func (t *CertificateNotificationTask) Status() TaskStatus { return t.status }

// CertificateID returns the certificate this task announces
func (t *CertificateNotificationTask) CertificateID() uuid.UUID { return t.certificateID }

// Execute implements Task.
func (t *CertificateNotificationTask) Execute(ctx context.Context) error {
	f := t.factory
	log := logger.FromContextOrDefault(ctx, f.logger).With("certificate_id", t.certificateID)

	claimed, err := f.certificates.ClaimNotification(ctx, t.certificateID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to claim notification: %w", err)
	}
	if !claimed {
		log.Info("certificate notification already sent")
		return nil
	}

	if err := t.send(ctx, log); err != nil {
		if releaseErr := f.certificates.ReleaseNotification(ctx, t.certificateID); releaseErr != nil {
			log.Error("failed to release notification claim", "error", releaseErr)
		}
		return err
	}
	return nil
}

func (t *CertificateNotificationTask) send(ctx context.Context, log *slog.Logger) error {
	f := t.factory

	cert, err := f.certificates.GetByID(ctx, t.certificateID)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	if cert.Status != domain.CertificateStatusIssued {
		log.Info("skipping notification for revoked certificate")
		return nil
	}

	reg, err := f.registrations.GetByID(ctx, cert.RegistrationID)
	if err != nil {
		return fmt.Errorf("failed to load registration: %w", err)
	}

	msg := email.Message{
		To:       reg.ParticipantEmail,
		Template: email.TemplateCertificateIssued,
		Data: map[string]any{
			"participant_name":   cert.ParticipantName,
			"event_title":        cert.EventTitle,
			"certificate_number": cert.CertificateNumber,
			"verify_url":         f.verifyBaseURL + "/" + cert.CertificateNumber,
		},
		IdempotencyKey: cert.CertificateNumber,
	}
	if err := f.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send certificate email: %w", err)
	}

	log.Info("certificate notification sent", "certificate_number", cert.CertificateNumber)
	return nil
}
