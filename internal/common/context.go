package common

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	ContextKeyTraceID contextKey = "trace_id"
	ContextKeyLogger  contextKey = "logger"
)

// WithTraceID tags the context with the submission that caused the work.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ContextKeyTraceID, traceID)
}

// TraceIDFromContext extracts the trace ID from context
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyTraceID).(string); ok {
		return id
	}
	return ""
}

// WithLogger stores a run-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ContextKeyLogger, logger)
}

// LoggerFromContext returns the run-scoped logger, or fallback when none is set.
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ContextKeyLogger).(*slog.Logger); ok && l != nil {
		return l
	}
	if fallback == nil {
		return slog.Default()
	}
	return fallback
}
