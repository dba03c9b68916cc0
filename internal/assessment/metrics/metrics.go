package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for assessment generation.
type Metrics struct {
	// Generated assessments by mode ("single", "bulk") and type
	Generated *prometheus.CounterVec

	// Rejected generation requests by reason
	Rejected *prometheus.CounterVec

	// Whole generation latency, planning and commit included
	GenerateLatency prometheus.Histogram

	// Text field updates by whether the status moved
	Updates *prometheus.CounterVec
}

// New creates the assessment metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Generated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grc_assessments_generated_total",
			Help: "Generated assessments by mode and assessment type",
		}, []string{"mode", "type"}),

		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grc_assessment_generation_rejected_total",
			Help: "Rejected assessment generation requests by reason",
		}, []string{"reason"}),

		GenerateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "grc_assessment_generation_duration_seconds",
			Help:    "Duration of assessment generation including the commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		Updates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grc_assessment_updates_total",
			Help: "Assessment text updates by whether the status changed",
		}, []string{"status_changed"}),
	}
}

// IncrementGenerated records n generated assessments.
func (m *Metrics) IncrementGenerated(mode, assessmentType string, n int) {
	if m != nil {
		m.Generated.WithLabelValues(mode, assessmentType).Add(float64(n))
	}
}

// IncrementRejected records a rejected generation request.
func (m *Metrics) IncrementRejected(reason string) {
	if m != nil {
		m.Rejected.WithLabelValues(reason).Inc()
	}
}

// ObserveGenerateLatency records the duration of one generation call.
func (m *Metrics) ObserveGenerateLatency(d time.Duration) {
	if m != nil {
		m.GenerateLatency.Observe(d.Seconds())
	}
}

// IncrementUpdate records a text update.
func (m *Metrics) IncrementUpdate(statusChanged bool) {
	if m != nil {
		label := "false"
		if statusChanged {
			label = "true"
		}
		m.Updates.WithLabelValues(label).Inc()
	}
}
