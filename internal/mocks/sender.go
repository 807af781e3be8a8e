package mocks

import (
	"context"
	"sync"

	"github.com/behaviorschool/ceu-api/internal/platform/email"
)

// RecordingSender records every message it is asked to send
type RecordingSender struct {
	mu       sync.Mutex
	messages []email.Message

	// SendFn, when set, decides the result of each send. A message is
	// recorded only when SendFn returns nil.
	SendFn func(msg email.Message) error
}

// Send implements email.Sender
func (s *RecordingSender) Send(ctx context.Context, msg email.Message) error {
	if s.SendFn != nil {
		if err := s.SendFn(msg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages
func (s *RecordingSender) Messages() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.messages...)
}

var _ email.Sender = (*RecordingSender)(nil)
