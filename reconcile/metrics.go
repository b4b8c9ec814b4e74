package reconcile

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c-wilkinson/T4Toolbox/artifact"
)

// Metrics counts reconciliation runs and file actions. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs     *prometheus.CounterVec
	files    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates metrics on a private registry so several engines can
// coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "t4out",
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation runs by outcome (ok, validation, aborted, error).",
		}, []string{"outcome"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "t4out",
			Name:      "reconcile_files_total",
			Help:      "Files handled by action (written, unchanged, deleted, preserved, configured).",
		}, []string{"action"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "t4out",
			Name:      "reconcile_duration_seconds",
			Help:      "Reconciliation run duration.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.runs, m.files, m.duration)
	return m
}

// Gatherer exposes the metrics for export.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(res *Result, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	m.runs.WithLabelValues(outcome(err)).Inc()
	if res == nil {
		return
	}
	m.files.WithLabelValues("written").Add(float64(len(res.Written)))
	m.files.WithLabelValues("unchanged").Add(float64(len(res.Unchanged)))
	m.files.WithLabelValues("deleted").Add(float64(len(res.Deleted)))
	m.files.WithLabelValues("preserved").Add(float64(len(res.Preserved)))
	m.files.WithLabelValues("configured").Add(float64(len(res.Configured)))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case artifact.IsValidation(err):
		return "validation"
	case errors.Is(err, ErrCheckoutAborted):
		return "aborted"
	default:
		return "error"
	}
}
