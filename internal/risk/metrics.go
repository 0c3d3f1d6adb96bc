package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
	Scores    prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_risk_decisions_total",
			Help: "Risk gate decisions by outcome and whether the screen was simulated",
		}, []string{"decision", "simulated"}),
		Scores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboard_risk_score",
			Help:    "Distribution of provider risk scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 75, 90, 100},
		}),
	}
}

func (m *Metrics) IncrementDecision(d Decision, simulated bool) {
	if m == nil {
		return
	}
	label := "false"
	if simulated {
		label = "true"
	}
	m.Decisions.WithLabelValues(string(d), label).Inc()
}

func (m *Metrics) ObserveScore(score float64) {
	if m != nil {
		m.Scores.Observe(score)
	}
}
