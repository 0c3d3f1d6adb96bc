package financial

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the aggregator.
type Metrics struct {
	SourceLatency *prometheus.HistogramVec
	Degraded      *prometheus.CounterVec
	Polls         prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SourceLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboard_financial_source_duration_seconds",
			Help:    "Duration of each financial source step",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"source"}),
		Degraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_financial_degraded_total",
			Help: "Enrichment steps that did not contribute to a profile",
		}, []string{"source"}),
		Polls: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboard_financial_statement_polls",
			Help:    "Polls needed per statement job",
			Buckets: []float64{1, 2, 3, 5, 8, 12, 20},
		}),
	}
}

func (m *Metrics) ObserveSource(source Source, d time.Duration) {
	if m != nil {
		m.SourceLatency.WithLabelValues(string(source)).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementDegraded(source Source) {
	if m != nil {
		m.Degraded.WithLabelValues(string(source)).Inc()
	}
}

func (m *Metrics) ObservePolls(n int) {
	if m != nil {
		m.Polls.Observe(float64(n))
	}
}
