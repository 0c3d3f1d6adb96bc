package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for provider calls.
type Metrics struct {
	Calls        *prometheus.CounterVec
	Retries      *prometheus.CounterVec
	Fallbacks    *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	BreakerState *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_provider_calls_total",
			Help: "Provider calls by provider and normalized outcome",
		}, []string{"provider", "outcome"}),
		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_provider_retries_total",
			Help: "Provider call retries after a retryable failure",
		}, []string{"provider"}),
		Fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_provider_fallbacks_total",
			Help: "Stub results substituted for failed live providers",
		}, []string{"provider"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboard_provider_attempt_duration_seconds",
			Help:    "Duration of single provider attempts",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "onboard_provider_breaker_open",
			Help: "1 while the provider circuit is open",
		}, []string{"provider"}),
	}
}

func (m *Metrics) IncrementCall(provider string, outcome OutcomeKind) {
	if m != nil {
		m.Calls.WithLabelValues(provider, string(outcome)).Inc()
	}
}

func (m *Metrics) IncrementRetry(provider string) {
	if m != nil {
		m.Retries.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) IncrementFallback(provider string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) ObserveAttempt(provider string, d time.Duration) {
	if m != nil {
		m.Latency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

func (m *Metrics) SetBreakerOpen(provider string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(provider).Set(v)
}
