package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"onboard/pkg/platform/circuit"
)

// Notifier is the best-effort front of a Publisher. A failed notification is
// logged and counted but never surfaces to the caller. After repeated
// failures the breaker opens and events are dropped until the cooldown
// allows a trial call.
type Notifier struct {
	publisher Publisher
	breaker   *circuit.Breaker
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) { n.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(n *Notifier) { n.breaker = b }
}

// WithTimeout bounds each publish.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) { n.timeout = d }
}

func NewNotifier(p Publisher, opts ...Option) *Notifier {
	n := &Notifier{
		publisher: p,
		breaker:   circuit.New("notify", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		timeout:   5 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) Notify(ctx context.Context, event Event) {
	if n == nil || n.publisher == nil {
		return
	}
	if !n.breaker.Allow() {
		n.metrics.IncDropped()
		n.logger.WarnContext(ctx, "notification dropped, channel circuit open",
			"process_id", event.ProcessID,
			"status", event.Status,
		)
		return
	}

	// Detached from the caller so a cancelled request still notifies.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	if err := n.publisher.Publish(pubCtx, event); err != nil {
		_, change := n.breaker.RecordFailure()
		n.metrics.IncFailed()
		n.metrics.SetOpen(n.breaker.IsOpen())
		n.logger.WarnContext(ctx, "notification failed",
			"process_id", event.ProcessID,
			"status", event.Status,
			"circuit_opened", change.Opened,
			"error", err,
		)
		return
	}
	n.breaker.RecordSuccess()
	n.metrics.SetOpen(false)
	n.metrics.IncSent()
}

type Metrics struct {
	Sent    prometheus.Counter
	Failed  prometheus.Counter
	Dropped prometheus.Counter
	Open    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sent: f.NewCounter(prometheus.CounterOpts{
			Name: "onboard_notifications_sent_total",
			Help: "Status notifications delivered",
		}),
		Failed: f.NewCounter(prometheus.CounterOpts{
			Name: "onboard_notifications_failed_total",
			Help: "Status notifications the publisher rejected",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "onboard_notifications_dropped_total",
			Help: "Status notifications skipped while the circuit was open",
		}),
		Open: f.NewGauge(prometheus.GaugeOpts{
			Name: "onboard_notifications_circuit_open",
			Help: "1 while the notification circuit is open",
		}),
	}
}

func (m *Metrics) IncSent() {
	if m != nil {
		m.Sent.Inc()
	}
}

func (m *Metrics) IncFailed() {
	if m != nil {
		m.Failed.Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) SetOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.Open.Set(1)
		return
	}
	m.Open.Set(0)
}
