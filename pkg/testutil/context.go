package testutil

import (
	"context"
	"time"

	"onboard/pkg/requestcontext"
)

// FixedNow is the clock used by tests that need stable timestamps.
var FixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// Context returns a background context pinned to FixedNow.
func Context() context.Context {
	return requestcontext.WithTime(context.Background(), FixedNow)
}

// ContextAt returns a background context pinned to t.
func ContextAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
