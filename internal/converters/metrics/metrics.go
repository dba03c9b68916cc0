package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for CSV import and export.
type Metrics struct {
	// Imported rows by object type and outcome
	ImportedRows *prometheus.CounterVec

	// Exported rows by object type
	ExportedRows *prometheus.CounterVec

	// Import and export latency by operation
	Latency *prometheus.HistogramVec
}

// New creates the converter metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ImportedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grc_csv_import_rows_total",
			Help: "Imported CSV rows by object type and outcome",
		}, []string{"type", "outcome"}),

		ExportedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grc_csv_export_rows_total",
			Help: "Exported CSV rows by object type",
		}, []string{"type"}),

		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grc_csv_operation_duration_seconds",
			Help:    "Duration of CSV imports and exports",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "dry_run"}),
	}
}

// AddImported records n rows of one outcome ("created", "updated",
// "deleted", "ignored").
func (m *Metrics) AddImported(objectType, outcome string, n int) {
	if m != nil && n > 0 {
		m.ImportedRows.WithLabelValues(objectType, outcome).Add(float64(n))
	}
}

// AddExported records n exported rows.
func (m *Metrics) AddExported(objectType string, n int) {
	if m != nil {
		m.ExportedRows.WithLabelValues(objectType).Add(float64(n))
	}
}

// ObserveLatency records one import or export.
func (m *Metrics) ObserveLatency(operation string, dryRun bool, d time.Duration) {
	if m != nil {
		label := "false"
		if dryRun {
			label = "true"
		}
		m.Latency.WithLabelValues(operation, label).Observe(d.Seconds())
	}
}
