package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/mocks"
	"github.com/behaviorschool/ceu-api/internal/platform/email"
	"github.com/behaviorschool/ceu-api/internal/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mem      *mocks.Memory
	provider *domain.Provider
	event    *domain.Event
	reg      *domain.Registration
	cert     *domain.Certificate
}

func newFixture(t *testing.T, contactEmail string) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	mem := mocks.NewMemory()

	provider, err := domain.NewProvider("Behavior School", "OP-01-2345", contactEmail, now, 0)
	require.NoError(t, err)
	require.NoError(t, mem.Providers().Create(ctx, provider))

	event, err := domain.NewEvent(provider.ID, "Ethics in Practice", domain.CECategoryEthics,
		domain.ModalityInPerson, 1, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, mem.Events().Create(ctx, event))

	reg, err := domain.NewRegistration(event.ID, uuid.New(), "Pat Lee", "1-23-45678", "pat@example.com", now)
	require.NoError(t, err)
	require.NoError(t, mem.Registrations().Create(ctx, reg))

	cert, err := domain.NewCertificate("CE-2026-ABCDEFGHJK", reg, event, provider, now)
	require.NoError(t, err)
	created, err := mem.Certificates().CreateIfAbsent(ctx, cert)
	require.NoError(t, err)
	require.True(t, created)

	return &fixture{mem: mem, provider: provider, event: event, reg: reg, cert: cert}
}

func TestCertificateNotificationTask_SendsOnce(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "")
	sender := &mocks.RecordingSender{}
	factory := task.NewCertificateNotificationTaskFactory(
		fx.mem.Certificates(), fx.mem.Registrations(), sender, "https://ce.example.com/verify/", nil)

	first, err := factory.CreateTask(fx.cert.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskTypeCertificateNotification, first.Type())

	// A second task for the same certificate, as produced by a retried outbox row.
	second, err := factory.CreateTask(fx.cert.ID)
	require.NoError(t, err)

	require.NoError(t, first.Execute(context.Background()))
	require.NoError(t, second.Execute(context.Background()))
	require.NoError(t, first.Execute(context.Background()))

	msgs := sender.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "pat@example.com", msgs[0].To)
	assert.Equal(t, email.TemplateCertificateIssued, msgs[0].Template)
	assert.Equal(t, fx.cert.CertificateNumber, msgs[0].IdempotencyKey)
	assert.Equal(t, "https://ce.example.com/verify/CE-2026-ABCDEFGHJK", msgs[0].Data["verify_url"])
}

func TestCertificateNotificationTask_ReleasesClaimOnFailure(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "")
	fail := true
	sender := &mocks.RecordingSender{SendFn: func(email.Message) error {
		if fail {
			return errors.New("relay down")
		}
		return nil
	}}
	factory := task.NewCertificateNotificationTaskFactory(
		fx.mem.Certificates(), fx.mem.Registrations(), sender, "/api/verify", nil)

	tk, err := factory.CreateTask(fx.cert.ID)
	require.NoError(t, err)

	err = tk.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")

	stored, err := fx.mem.Certificates().GetByID(context.Background(), fx.cert.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.NotifiedAt, "claim should be released so a retry can send")

	fail = false
	require.NoError(t, tk.Execute(context.Background()))
	assert.Len(t, sender.Messages(), 1)
}

func TestCertificateNotificationTask_SkipsRevoked(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "")
	ctx := context.Background()
	require.NoError(t, fx.cert.Revoke("issued in error", uuid.New(), time.Now()))
	require.NoError(t, fx.mem.Certificates().Revoke(ctx, fx.cert))

	sender := &mocks.RecordingSender{}
	factory := task.NewCertificateNotificationTaskFactory(
		fx.mem.Certificates(), fx.mem.Registrations(), sender, "/api/verify", nil)
	tk, err := factory.CreateTask(fx.cert.ID)
	require.NoError(t, err)

	require.NoError(t, tk.Execute(ctx))
	assert.Empty(t, sender.Messages())
}

func TestCertificateNotificationTaskFactory_FromRecord(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "")
	factory := task.NewCertificateNotificationTaskFactory(
		fx.mem.Certificates(), fx.mem.Registrations(), &mocks.RecordingSender{}, "/api/verify", nil)

	payload, err := json.Marshal(task.CertificateNotificationPayload{CertificateID: fx.cert.ID})
	require.NoError(t, err)
	id := uuid.New()

	tk, err := factory.FromRecord(task.Record{ID: id, Type: task.TaskTypeCertificateNotification, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, id, tk.ID())

	_, err = factory.FromRecord(task.Record{ID: id, Payload: []byte(`{}`)})
	assert.Error(t, err)
	_, err = factory.FromRecord(task.Record{ID: id, Payload: []byte(`not json`)})
	assert.Error(t, err)
}

func TestProviderNotificationTask(t *testing.T) {
	t.Parallel()

	t.Run("rejection email carries the reason", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, "provider@example.com")
		sender := &mocks.RecordingSender{}
		factory := task.NewProviderNotificationTaskFactory(fx.mem.Providers(), fx.mem.Events(), sender, nil)

		tk, err := factory.CreateTask(task.ProviderNotificationPayload{
			EventID:    fx.event.ID,
			ProviderID: fx.provider.ID,
			Outcome:    task.ReviewRejected,
			Reason:     "missing objectives",
		})
		require.NoError(t, err)
		require.NoError(t, tk.Execute(context.Background()))

		msgs := sender.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "provider@example.com", msgs[0].To)
		assert.Equal(t, email.TemplateEventRejected, msgs[0].Template)
		assert.Equal(t, "missing objectives", msgs[0].Data["reason"])
	})

	t.Run("provider without contact email is skipped", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, "")
		sender := &mocks.RecordingSender{}
		factory := task.NewProviderNotificationTaskFactory(fx.mem.Providers(), fx.mem.Events(), sender, nil)

		tk, err := factory.CreateTask(task.ProviderNotificationPayload{
			EventID:    fx.event.ID,
			ProviderID: fx.provider.ID,
			Outcome:    task.ReviewApproved,
		})
		require.NoError(t, err)
		require.NoError(t, tk.Execute(context.Background()))
		assert.Empty(t, sender.Messages())
	})

	t.Run("unknown outcome is rejected", func(t *testing.T) {
		t.Parallel()

		factory := task.NewProviderNotificationTaskFactory(nil, nil, &mocks.RecordingSender{}, nil)
		_, err := factory.CreateTask(task.ProviderNotificationPayload{Outcome: "maybe"})
		assert.Error(t, err)
	})
}

type recordingSubmitter struct {
	tasks []task.Task
	err   error
}

func (s *recordingSubmitter) Submit(ctx context.Context, t task.Task) error {
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, t)
	return nil
}

func TestNotificationEventHandler(t *testing.T) {
	t.Parallel()

	factory := task.NewProviderNotificationTaskFactory(nil, nil, &mocks.RecordingSender{}, nil)

	t.Run("approval becomes a provider notification task", func(t *testing.T) {
		t.Parallel()

		submitter := &recordingSubmitter{}
		handler := task.NewNotificationEventHandler(factory, submitter, nil)

		reviewed := events.EventReviewed{EventID: uuid.New(), ProviderID: uuid.New()}
		ev, err := events.NewLifecycleEvent(events.TypeEventApproved, reviewed.EventID, reviewed)
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), ev))
		require.Len(t, submitter.tasks, 1)
		assert.Equal(t, task.TaskTypeProviderNotification, submitter.tasks[0].Type())

		var payload task.ProviderNotificationPayload
		require.NoError(t, json.Unmarshal(submitter.tasks[0].Payload(), &payload))
		assert.Equal(t, task.ReviewApproved, payload.Outcome)
		assert.Equal(t, reviewed.EventID, payload.EventID)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		t.Parallel()

		submitter := &recordingSubmitter{}
		handler := task.NewNotificationEventHandler(factory, submitter, nil)

		ev, err := events.NewLifecycleEvent(events.TypeEventStarted, uuid.New(), nil)
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), ev))
		assert.Empty(t, submitter.tasks)
	})

	t.Run("submit failure is returned", func(t *testing.T) {
		t.Parallel()

		submitter := &recordingSubmitter{err: errors.New("db down")}
		handler := task.NewNotificationEventHandler(factory, submitter, nil)

		ev, err := events.NewLifecycleEvent(events.TypeEventRejected, uuid.New(),
			events.EventReviewed{EventID: uuid.New(), ProviderID: uuid.New(), Reason: "no"})
		require.NoError(t, err)

		err = handler.HandleEvent(context.Background(), ev)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to submit task")
	})
}
