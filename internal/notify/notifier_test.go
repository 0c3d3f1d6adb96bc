package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/pkg/platform/circuit"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	ctxErr error
}

func (p *recordingPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxErr = ctx.Err()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifyDelivers(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewMetrics(prometheus.NewRegistry())
	n := NewNotifier(pub, WithLogger(discard()), WithMetrics(m))

	n.Notify(context.Background(), Event{ProcessID: "p1", Status: "COMPLETED"})

	require.Len(t, pub.events, 1)
	assert.Equal(t, "COMPLETED", pub.events[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sent))
}

func TestNotifySurvivesCancelledCaller(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, WithLogger(discard()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Notify(ctx, Event{ProcessID: "p1", Status: "MANUAL_REVIEW"})

	require.Len(t, pub.events, 1)
	assert.NoError(t, pub.ctxErr)
}

func TestNotifySwallowsFailuresAndOpensCircuit(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker unreachable")}
	m := NewMetrics(prometheus.NewRegistry())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	breaker := circuit.New("notify",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	var logs bytes.Buffer
	n := NewNotifier(pub,
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithMetrics(m),
		WithBreaker(breaker),
	)

	for range 3 {
		n.Notify(context.Background(), Event{ProcessID: "p1", Status: "COMPLETED"})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Failed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Open))
	assert.Contains(t, logs.String(), "broker unreachable")

	// after the cooldown a trial call goes through and closes the circuit
	pub.err = nil
	now = now.Add(2 * time.Minute)
	n.Notify(context.Background(), Event{ProcessID: "p2", Status: "COMPLETED"})

	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Open))
	require.Len(t, pub.events, 1)
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() { n.Notify(context.Background(), Event{}) })
}

func TestLogPublisher(t *testing.T) {
	var logs bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&logs, nil)))

	require.NoError(t, p.Publish(context.Background(), Event{ProcessID: "p1", Status: "COMPLETED"}))
	assert.Contains(t, logs.String(), "status=COMPLETED")
}
