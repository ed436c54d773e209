// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ActorIDKey is the context key for the resolved actor (account or guest)
	ActorIDKey contextKey = "actor_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger writing to w. Tests pass io.Discard.
func NewWithWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriter("production", io.Discard)
}

// WithContext returns a logger with request_id and actor_id from ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if actorID, ok := ctx.Value(ActorIDKey).(string); ok && actorID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("actor_id", actorID))}
	}

	return newLogger
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// JobTransition logs a committed job status change.
func (l *Logger) JobTransition(jobID, from, to, actorID string) {
	l.Info("job_transition",
		slog.String("job_id", jobID),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("actor_id", actorID),
	)
}

// GuestLink logs the outcome of a guest-to-account link.
func (l *Logger) GuestLink(accountID string, linked int) {
	l.Info("guest_link",
		slog.String("account_id", accountID),
		slog.Int("linked", linked),
	)
}

// NotificationDeliveryFailed logs a channel delivery failure.
func (l *Logger) NotificationDeliveryFailed(notificationID, channel string, err error) {
	l.Warn("notification_delivery_failed",
		slog.String("notification_id", notificationID),
		slog.String("channel", channel),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(key, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("key", key),
		slog.String("path", path),
	)
}
