package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// Capture collects JSON log output written during a test. It is safe for
// concurrent writers such as task workers.
type Capture struct {
	mu  sync.Mutex
	out bytes.Buffer
}

// Write implements io.Writer.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// String returns everything logged so far.
func (c *Capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

// Find returns the attributes of the first record logged with msg, or nil.
// Lines that are not JSON are skipped.
func (c *Capture) Find(msg string) map[string]any {
	for _, line := range strings.Split(c.String(), "\n") {
		var record map[string]any
		if json.Unmarshal([]byte(line), &record) != nil {
			continue
		}
		if record[slog.MessageKey] == msg {
			return record
		}
	}
	return nil
}

// NewTestLogger returns a debug-level JSON logger writing into a Capture,
// and a context carrying that logger.
func NewTestLogger(t *testing.T) (context.Context, *slog.Logger, *Capture) {
	t.Helper()

	c := &Capture{}
	l := slog.New(slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return WithLogger(context.Background(), l), l, c
}

// AssertLogContains fails the test unless content was logged.
func AssertLogContains(t *testing.T, c *Capture, content string) {
	t.Helper()
	if logs := c.String(); !strings.Contains(logs, content) {
		t.Errorf("expected log to contain %q, got:\n%s", content, logs)
	}
}

// AssertLogOmits fails the test if any of values was logged, such as a
// participant's BACB id or a rendered email body.
func AssertLogOmits(t *testing.T, c *Capture, values ...string) {
	t.Helper()
	logs := c.String()
	for _, v := range values {
		if strings.Contains(logs, v) {
			t.Errorf("log must not contain %q, got:\n%s", v, logs)
		}
	}
}
