// Package logger provides structured logging for the application on top of
// log/slog. Setup builds the process logger from configuration, and the
// context helpers carry a request-scoped logger through handlers, services
// and stores.
package logger
