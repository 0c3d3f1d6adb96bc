package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(b *Breaker, outcomes string) {
	for _, o := range outcomes {
		switch o {
		case 'F':
			b.RecordFailure()
		case 'S':
			b.RecordSuccess()
		}
	}
}

func TestBreakerTransitions(t *testing.T) {
	cases := []struct {
		name      string
		failures  int
		successes int
		outcomes  string
		open      bool
	}{
		{name: "new breaker is closed", failures: 3, outcomes: "", open: false},
		{name: "below threshold stays closed", failures: 3, outcomes: "FF", open: false},
		{name: "threshold opens", failures: 3, outcomes: "FFF", open: true},
		{name: "success resets the failure run", failures: 3, outcomes: "FFSFF", open: false},
		{name: "run after reset opens", failures: 3, outcomes: "FFSFFF", open: true},
		{name: "one success is not enough to close", failures: 1, successes: 2, outcomes: "FS", open: true},
		{name: "success threshold closes", failures: 1, successes: 2, outcomes: "FSS", open: false},
		{name: "failure while open restarts the success count", failures: 1, successes: 3, outcomes: "FSSFSS", open: true},
		{name: "full success run after restart closes", failures: 1, successes: 3, outcomes: "FSSFSSS", open: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := []Option{WithFailureThreshold(tc.failures)}
			if tc.successes > 0 {
				opts = append(opts, WithSuccessThreshold(tc.successes))
			}
			b := New("aml-screening", opts...)
			record(b, tc.outcomes)
			assert.Equal(t, tc.open, b.IsOpen())
		})
	}
}

func TestBreakerReportsStateChangesOnce(t *testing.T) {
	b := New("identity", WithFailureThreshold(2), WithSuccessThreshold(1))
	assert.Equal(t, "identity", b.Name())

	useFallback, opened := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, opened.Opened)

	useFallback, opened = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, opened.Opened)

	useFallback, opened = b.RecordFailure()
	assert.True(t, useFallback, "open breaker keeps routing to the fallback")
	assert.False(t, opened.Opened, "already open")

	usePrimary, closed := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, closed.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b := New("face", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerAllowsOneTrialCallAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("core-banking", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(func() time.Time { return now }))

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow(), "cooling down")

	now = now.Add(10 * time.Second)
	assert.True(t, b.Allow(), "trial call after cooldown")
	assert.False(t, b.Allow(), "one trial call per window")

	b.RecordSuccess()
	assert.True(t, b.Allow())
	assert.Equal(t, "closed", b.State().String())
}
