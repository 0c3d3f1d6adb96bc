package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"onboard/internal/process/models"
)

type Metrics struct {
	Started       prometheus.Counter
	Transitions   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Conflicts     *prometheus.CounterVec
	Purged        prometheus.Counter
	QueueDepth    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Started: f.NewCounter(prometheus.CounterOpts{
			Name: "onboard_processes_started_total",
			Help: "Onboarding processes started",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_transitions_total",
			Help: "Committed status transitions",
		}, []string{"from", "to"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboard_stage_duration_seconds",
			Help:    "Stage execution time, commit excluded",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 120},
		}, []string{"stage", "signal"}),
		Conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_transition_conflicts_total",
			Help: "Transitions abandoned because another execution advanced the process",
		}, []string{"stage"}),
		Purged: f.NewCounter(prometheus.CounterOpts{
			Name: "onboard_processes_purged_total",
			Help: "Expired process records removed",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "onboard_runner_queue_depth",
			Help: "Processes waiting for a runner worker",
		}),
	}
}

func (m *Metrics) IncStarted() {
	if m != nil {
		m.Started.Inc()
	}
}

func (m *Metrics) IncTransition(from, to models.Status) {
	if m != nil {
		m.Transitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func (m *Metrics) ObserveStage(stage models.Stage, signal string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(string(stage), signal).Observe(d.Seconds())
	}
}

func (m *Metrics) IncConflict(stage models.Stage) {
	if m != nil {
		m.Conflicts.WithLabelValues(string(stage)).Inc()
	}
}

func (m *Metrics) AddPurged(n int) {
	if m != nil {
		m.Purged.Add(float64(n))
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
