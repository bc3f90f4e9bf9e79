package logging

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// traceIDKey is the context key under which the trace ID is stored.
type traceIDKey struct{}

// ContextWithTraceID returns a context carrying the given trace ID.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID stored in ctx, or empty string.
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetOrGenerateTraceID returns the trace ID from ctx, generating a fresh
// ULID when the context has none. ULIDs sort by creation time, which keeps
// log aggregation tools happy when sorting by trace.
func GetOrGenerateTraceID(ctx context.Context) string {
	if id := TraceIDFromContext(ctx); id != "" {
		return id
	}
	return ulid.Make().String()
}
