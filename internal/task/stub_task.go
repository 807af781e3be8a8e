package task

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/google/uuid"
)

// StubTask is a Task whose behaviour is supplied by the caller. Tests use it
// to drive the runner without sending email.
type StubTask struct {
	id      uuid.UUID
	kind    string
	payload []byte

	// Run is called by Execute. It succeeds when nil.
	Run func(ctx context.Context) error

	runs atomic.Int32
}

// NewStubTask returns a pending StubTask.
func NewStubTask(id uuid.UUID, kind string, payload []byte) *StubTask {
	return &StubTask{id: id, kind: kind, payload: payload}
}

// stubNotification is the payload of NewNotificationStub, shaped like the
// payloads of the real notification tasks.
type stubNotification struct {
	SubjectID uuid.UUID `json:"subject_id"`
	Note      string    `json:"note,omitempty"`
}

// NewNotificationStub returns a certificate notification StubTask about a
// fresh subject. note only labels the task in logs and assertions.
func NewNotificationStub(note string) *StubTask {
	data, _ := json.Marshal(stubNotification{SubjectID: uuid.New(), Note: note})
	return NewStubTask(uuid.New(), TaskTypeCertificateNotification, data)
}

func (t *StubTask) ID() uuid.UUID      { return t.id }
func (t *StubTask) Type() string       { return t.kind }
func (t *StubTask) Payload() []byte    { return t.payload }
func (t *StubTask) Status() TaskStatus { return TaskStatusPending }

// Execute counts the call and delegates to Run.
func (t *StubTask) Execute(ctx context.Context) error {
	t.runs.Add(1)
	if t.Run == nil {
		return nil
	}
	return t.Run(ctx)
}

// Runs reports how many times Execute was called.
func (t *StubTask) Runs() int {
	return int(t.runs.Load())
}
