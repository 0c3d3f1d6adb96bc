// Package requestcontext provides transport-independent accessors for
// request-scoped values.
//
// Middleware sets values; services and workers read them:
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject a fixed clock with requestcontext.WithTime.
package requestcontext

import (
	"context"
	"time"

	"onboard/pkg/domain"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	processIDKey   struct{}
)

var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyProcessID   = processIDKey{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ProcessID retrieves the onboarding process bound to this execution.
// Returns the nil id when unset.
func ProcessID(ctx context.Context) domain.ProcessID {
	if id, ok := ctx.Value(ContextKeyProcessID).(domain.ProcessID); ok {
		return id
	}
	return domain.ProcessID{}
}

// WithProcessID binds a process id to the context so providers and loggers
// deep in a stage can tag their output.
func WithProcessID(ctx context.Context, id domain.ProcessID) context.Context {
	return context.WithValue(ctx, ContextKeyProcessID, id)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for workers, CLI commands and tests that did not set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
