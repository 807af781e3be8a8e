package email_test

import (
	"context"
	"errors"
	"testing"

	"github.com/behaviorschool/ceu-api/internal/platform/email"
	"github.com/behaviorschool/ceu-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubComposer struct {
	err error
}

func (c stubComposer) ComposeEmail(template string, data map[string]any) (string, string, error) {
	if c.err != nil {
		return "", "", c.err
	}
	return "Subject for " + template, "<p>body</p>", nil
}

func TestLogSender_Send(t *testing.T) {
	t.Parallel()

	ctx, l, buf := logger.NewTestLogger(t)
	sender, err := email.NewLogSender("ce@example.com", stubComposer{}, l)
	require.NoError(t, err)

	msg := email.Message{
		To:             "pat@example.com",
		Template:       email.TemplateCertificateIssued,
		IdempotencyKey: "CE-2026-ABCDEFGHJK",
	}
	require.NoError(t, sender.Send(ctx, msg))
	require.NoError(t, sender.Send(ctx, msg))

	assert.Equal(t, 1, sender.SentCount())
	logger.AssertLogContains(t, buf, "skipping duplicate email")
	logger.AssertLogOmits(t, buf, "<p>body</p>")

	sent := buf.Find("email sent")
	require.NotNil(t, sent)
	assert.Equal(t, email.TemplateCertificateIssued, sent["template"])
	assert.Equal(t, "CE-2026-ABCDEFGHJK", sent["idempotency_key"])
}

func TestLogSender_InvalidRecipient(t *testing.T) {
	t.Parallel()

	sender, err := email.NewLogSender("ce@example.com", stubComposer{}, nil)
	require.NoError(t, err)

	err = sender.Send(context.Background(), email.Message{To: "not-an-address"})
	assert.ErrorIs(t, err, email.ErrInvalidRecipient)
	assert.Equal(t, 0, sender.SentCount())
}

func TestLogSender_ComposeFailure(t *testing.T) {
	t.Parallel()

	sender, err := email.NewLogSender("ce@example.com", stubComposer{err: errors.New("bad template")}, nil)
	require.NoError(t, err)

	err = sender.Send(context.Background(), email.Message{To: "pat@example.com", Template: "x", IdempotencyKey: "k"})
	assert.Error(t, err)
	assert.Equal(t, 0, sender.SentCount())
}

func TestNewLogSender_RequiresComposer(t *testing.T) {
	t.Parallel()

	_, err := email.NewLogSender("ce@example.com", nil, nil)
	assert.Error(t, err)
}
