package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/behaviorschool/ceu-api/internal/events"
	"github.com/behaviorschool/ceu-api/internal/mocks"
	"github.com/behaviorschool/ceu-api/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingEmitter keeps every emitted lifecycle event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.LifecycleEvent
}

func (e *recordingEmitter) EmitEvent(_ context.Context, ev *events.LifecycleEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEmitter) Types() []events.Type {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]events.Type, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	mem     *mocks.Memory
	tx      *mocks.Transactor
	stores  service.Stores
	emitter *recordingEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := mocks.NewMemory()
	return &harness{
		mem: mem,
		tx:  &mocks.Transactor{},
		stores: service.Stores{
			Providers:     mem.Providers(),
			Events:        mem.Events(),
			Registrations: mem.Registrations(),
			Attendance:    mem.Attendance(),
			Feedback:      mem.Feedback(),
			Quizzes:       mem.Quizzes(),
			Certificates:  mem.Certificates(),
		},
		emitter: &recordingEmitter{},
	}
}

func (h *harness) provider(t *testing.T) *domain.Provider {
	t.Helper()
	p, err := domain.NewProvider("Behavior School", "OP-"+uuid.NewString()[:8], "ops@example.com", time.Now(), 0)
	require.NoError(t, err)
	require.NoError(t, h.stores.Providers.Create(context.Background(), p))
	return p
}

// draftEvent creates a draft that satisfies every submission precondition.
func (h *harness) draftEvent(t *testing.T, p *domain.Provider, modality domain.Modality) *domain.Event {
	t.Helper()
	e, err := domain.NewEvent(p.ID, "Ethics in Practice", domain.CECategoryEthics, modality, 1.0,
		time.Now().Add(72*time.Hour))
	require.NoError(t, err)
	e.LearningObjectives = []string{"Identify dual relationships", "Apply code 2.0"}
	e.InstructorQualificationsSummary = "BCBA-D, 10 years of supervision"
	e.InstructorName = "Dr. Rivera"
	require.NoError(t, h.stores.Events.Create(context.Background(), e))
	return e
}

// eventIn stores an event already in status.
func (h *harness) eventIn(
	t *testing.T,
	p *domain.Provider,
	status domain.EventStatus,
	modality domain.Modality,
) *domain.Event {
	t.Helper()
	e := h.draftEvent(t, p, modality)
	e.Status = status
	require.NoError(t, h.stores.Events.Update(context.Background(), e))
	return e
}

func (h *harness) register(t *testing.T, e *domain.Event) *domain.Registration {
	t.Helper()
	r, err := domain.NewRegistration(e.ID, uuid.New(), "Ada Analyst", "1-23-4567", "ada@example.com", time.Now())
	require.NoError(t, err)
	require.NoError(t, h.stores.Registrations.Create(context.Background(), r))
	return r
}

func (h *harness) confirmAttendance(t *testing.T, r *domain.Registration) {
	t.Helper()
	a := domain.NewAttendance(r.ID, time.Now())
	a.CheckIn(time.Now())
	require.NoError(t, h.stores.Attendance.Upsert(context.Background(), a))
}

func (h *harness) giveFeedback(t *testing.T, r *domain.Registration) {
	t.Helper()
	f, err := domain.NewFeedback(r.ID, 5, 4, 5, 4, "Use the ethics checklist weekly", "", time.Now())
	require.NoError(t, err)
	require.NoError(t, h.stores.Feedback.Create(context.Background(), f))
}

// questions returns n one-point multiple choice questions whose correct
// option is "a".
func questions(n int) []domain.QuizQuestion {
	out := make([]domain.QuizQuestion, n)
	for i := range out {
		out[i] = domain.QuizQuestion{
			Prompt: "Which option is correct?",
			Type:   domain.QuestionTypeMultipleChoice,
			Options: []domain.QuizOption{
				{ID: "a", Text: "This one"},
				{ID: "b", Text: "Not this one"},
			},
			CorrectAnswerIDs: []string{"a"},
		}
	}
	return out
}

// answerAll answers every question of quiz with option.
func answerAll(quiz *domain.Quiz, option string) domain.Answers {
	answers := domain.Answers{}
	for _, q := range quiz.Questions {
		answers[q.ID] = []string{option}
	}
	return answers
}
