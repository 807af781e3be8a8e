// Package email defines the outbound email contract and a sender that
// writes composed messages to the structured log instead of a mail relay.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"github.com/behaviorschool/ceu-api/internal/platform/logger"
)

// Template names understood by the composer.
const (
	TemplateCertificateIssued = "certificate_issued"
	TemplateEventApproved     = "event_approved"
	TemplateEventRejected     = "event_rejected"
)

// ErrInvalidRecipient is returned when the To address cannot be parsed.
var ErrInvalidRecipient = errors.New("invalid email recipient")

// Message is one outbound email. IdempotencyKey identifies the logical
// message so that a relay can drop repeats of the same delivery.
type Message struct {
	To             string
	Template       string
	Data           map[string]any
	IdempotencyKey string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Composer turns a template and its data into a subject and an HTML body.
type Composer interface {
	ComposeEmail(template string, data map[string]any) (subject string, body string, err error)
}

// LogSender composes each message and logs it. Repeats of an idempotency
// key already sent by this process are skipped.
type LogSender struct {
	from     string
	composer Composer
	logger   *slog.Logger

	mu   sync.Mutex
	sent map[string]struct{}
}

// NewLogSender creates a LogSender.
func NewLogSender(from string, composer Composer, logger *slog.Logger) (*LogSender, error) {
	if composer == nil {
		return nil, fmt.Errorf("composer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{
		from:     from,
		composer: composer,
		logger:   logger.With(slog.String("component", "email_sender")),
		sent:     make(map[string]struct{}),
	}, nil
}

var _ Sender = (*LogSender)(nil)

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := mail.ParseAddress(strings.TrimSpace(msg.To)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, msg.To)
	}

	subject, body, err := s.composer.ComposeEmail(msg.Template, msg.Data)
	if err != nil {
		return fmt.Errorf("failed to compose %s email: %w", msg.Template, err)
	}

	if msg.IdempotencyKey != "" {
		s.mu.Lock()
		if _, dup := s.sent[msg.IdempotencyKey]; dup {
			s.mu.Unlock()
			log.Info("skipping duplicate email", slog.String("idempotency_key", msg.IdempotencyKey))
			return nil
		}
		s.sent[msg.IdempotencyKey] = struct{}{}
		s.mu.Unlock()
	}

	log.Info("email sent",
		slog.String("from", s.from),
		slog.String("to", msg.To),
		slog.String("template", msg.Template),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(body)),
		slog.String("idempotency_key", msg.IdempotencyKey))
	return nil
}

// SentCount returns how many distinct idempotency keys were delivered.
func (s *LogSender) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
