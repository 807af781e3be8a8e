package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/behaviorschool/ceu-api/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmitter struct {
	mock.Mock
}

func (m *mockEmitter) EmitEvent(ctx context.Context, event *events.LifecycleEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newLifecycle(t *testing.T, h *harness, emitter events.EventEmitter) service.LifecycleService {
	t.Helper()
	svc, err := service.NewLifecycleService(h.stores, h.tx, emitter, discardLogger())
	require.NoError(t, err)
	return svc
}

func TestNewLifecycleService_RequiresDependencies(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := service.NewLifecycleService(service.Stores{}, h.tx, nil, nil)
	assert.Error(t, err)
	_, err = service.NewLifecycleService(h.stores, nil, nil, nil)
	assert.Error(t, err)
}

func TestSubmit_ReportsEveryViolatedField(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := newLifecycle(t, h, h.emitter)
	ctx := context.Background()

	event := h.draftEvent(t, h.provider(t), domain.ModalityInPerson)
	event.Title = " "
	event.LearningObjectives = []string{}
	event.InstructorQualificationsSummary = ""
	event.StartDate = time.Now().Add(-time.Hour)
	require.NoError(t, h.stores.Events.Update(ctx, event))

	_, err := svc.Submit(ctx, event.ID)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t,
		[]string{"title", "learning_objectives", "instructor_qualifications_summary", "start_date"},
		verr.FieldNames())

	stored, err := h.stores.Events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusDraft, stored.Status)
	assert.Empty(t, h.emitter.Types())
}

func TestSubmit_AsynchronousEventNeedsQuiz(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := newLifecycle(t, h, h.emitter)
	ctx := context.Background()
	event := h.draftEvent(t, h.provider(t), domain.ModalityAsynchronous)

	_, err := svc.Submit(ctx, event.ID)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"quiz"}, verr.FieldNames())

	// 1.0 CEU needs 6 questions.
	quiz, err := domain.NewQuiz(event.ID, "Check", 0, nil, questions(6), time.Now())
	require.NoError(t, err)
	require.NoError(t, h.stores.Quizzes.Create(ctx, quiz))

	submitted, err := svc.Submit(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusPendingApproval, submitted.Status)
}

func TestApprove_LapsedProviderKeepsEventPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := newLifecycle(t, h, h.emitter)
	ctx := context.Background()

	provider := h.provider(t)
	event := h.eventIn(t, provider, domain.EventStatusPendingApproval, domain.ModalityInPerson)
	provider.MarkLapsed(time.Now())
	require.NoError(t, h.stores.Providers.Update(ctx, provider))

	_, err := svc.Approve(ctx, event.ID, uuid.New())

	var lapsed *domain.ProviderLapsedError
	require.ErrorAs(t, err, &lapsed)
	assert.Equal(t, provider.ID, lapsed.ProviderID)
	assert.ErrorIs(t, err, domain.ErrProviderLapsed)

	stored, err := h.stores.Events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusPendingApproval, stored.Status)
}

func TestApprove_ExpiredProviderIsTreatedAsLapsed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := newLifecycle(t, h, h.emitter)
	ctx := context.Background()

	provider := h.provider(t)
	event := h.eventIn(t, provider, domain.EventStatusPendingApproval, domain.ModalityInPerson)
	provider.ExpiresAt = time.Now().Add(-time.Minute)
	provider.ApprovedAt = provider.ExpiresAt.Add(-time.Hour)
	require.NoError(t, h.stores.Providers.Update(ctx, provider))

	_, err := svc.Approve(ctx, event.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrProviderLapsed)
}

func TestApprove_RecordsReviewerAndEmits(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	emitter := &mockEmitter{}
	svc := newLifecycle(t, h, emitter)
	ctx := context.Background()

	event := h.eventIn(t, h.provider(t), domain.EventStatusPendingApproval, domain.ModalityInPerson)
	reviewer := uuid.New()

	emitter.On("EmitEvent", mock.Anything, mock.MatchedBy(func(ev *events.LifecycleEvent) bool {
		var payload events.EventReviewed
		return ev.Type == events.TypeEventApproved &&
			ev.UnmarshalPayload(&payload) == nil &&
			payload.EventID == event.ID &&
			payload.ProviderID == event.ProviderID
	})).Return(nil).Once()

	approved, err := svc.Approve(ctx, event.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, reviewer, *approved.ReviewedBy)
	emitter.AssertExpectations(t)
}

func TestApprove_EmitterFailureDoesNotUndoTransition(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	emitter := &mockEmitter{}
	emitter.On("EmitEvent", mock.Anything, mock.Anything).Return(errors.New("handler down"))
	svc := newLifecycle(t, h, emitter)

	event := h.eventIn(t, h.provider(t), domain.EventStatusPendingApproval, domain.ModalityInPerson)
	approved, err := svc.Approve(context.Background(), event.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusApproved, approved.Status)
}

func TestReject(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := newLifecycle(t, h, h.emitter)
	ctx := context.Background()
	event := h.eventIn(t, h.provider(t), domain.EventStatusPendingApproval, domain.ModalityInPerson)

	_, err := svc.Reject(ctx, event.ID, uuid.New(), "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	rejected, err := svc.Reject(ctx, event.ID, uuid.New(), "Objectives are not measurable")
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusRejected, rejected.Status)
	assert.Equal(t, "Objectives are not measurable", rejected.RejectionReason)
	assert.Equal(t, []events.Type{events.TypeEventRejected}, h.emitter.Types())
}

func TestLifecycle_DeliveryPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := newLifecycle(t, h, h.emitter)
	ctx := context.Background()
	event := h.eventIn(t, h.provider(t), domain.EventStatusApproved, domain.ModalityInPerson)

	_, err := svc.Complete(ctx, event.ID)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.EventStatusApproved, terr.From)
	assert.Equal(t, domain.EventStatusCompleted, terr.To)

	_, err = svc.Begin(ctx, event.ID)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, event.ID)
	require.NoError(t, err)
	archived, err := svc.Archive(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusArchived, archived.Status)

	_, err = svc.Begin(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrEventNotFound)
}

func TestAdvanceDue(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := newLifecycle(t, h, h.emitter)
	ctx := context.Background()
	provider := h.provider(t)

	due := h.eventIn(t, provider, domain.EventStatusApproved, domain.ModalityInPerson)
	due.StartDate = time.Now().Add(-2 * time.Hour)
	end := time.Now().Add(time.Hour)
	due.EndDate = &end
	require.NoError(t, h.stores.Events.Update(ctx, due))

	finished := h.eventIn(t, provider, domain.EventStatusInProgress, domain.ModalityInPerson)
	finished.StartDate = time.Now().Add(-3 * time.Hour)
	require.NoError(t, h.stores.Events.Update(ctx, finished))

	notYet := h.eventIn(t, provider, domain.EventStatusApproved, domain.ModalityInPerson)

	begun, completed, err := svc.AdvanceDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, begun)
	assert.Equal(t, 1, completed)

	for id, want := range map[uuid.UUID]domain.EventStatus{
		due.ID:      domain.EventStatusInProgress,
		finished.ID: domain.EventStatusCompleted,
		notYet.ID:   domain.EventStatusApproved,
	} {
		got, err := h.stores.Events.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
}

func TestSetCheckInCode_StoresHashOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	svc := newLifecycle(t, h, h.emitter)
	ctx := context.Background()
	event := h.eventIn(t, h.provider(t), domain.EventStatusApproved, domain.ModalityInPerson)

	assert.ErrorIs(t, svc.SetCheckInCode(ctx, event.ID, "ab"), domain.ErrValidation)
	require.NoError(t, svc.SetCheckInCode(ctx, event.ID, "ROOM-204"))

	stored, err := h.stores.Events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.VerificationCodeHash)
	assert.NotEqual(t, "ROOM-204", stored.VerificationCodeHash)
}
