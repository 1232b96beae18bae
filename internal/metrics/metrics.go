// Package metrics provides Prometheus metrics for organize and undo runs.
//
// declutter is a short-lived command, so metrics are not served over HTTP.
// At the end of a run they are written to a node_exporter textfile when
// [metrics] textfile is configured.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Move and undo outcomes used as label values.
const (
	OutcomeMoved    = "moved"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeRestored = "restored"
)

// Metrics owns a private registry so tests and repeated runs in one process
// never share counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	categorizations *prometheus.CounterVec
	failures        prometheus.Counter
	inflight        prometheus.Gauge
	moves           *prometheus.CounterVec
	undo            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
}

// New registers the declutter collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		categorizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "declutter_categorizations_total",
				Help: "Files categorized, by where the answer came from",
			},
			[]string{"source"},
		),
		failures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "declutter_categorization_failures_total",
				Help: "Categorizations that degraded to a fallback",
			},
		),
		inflight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "declutter_inflight_requests",
				Help: "Categorization requests currently in flight",
			},
		),
		moves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "declutter_moves_total",
				Help: "Planned moves, by outcome",
			},
			[]string{"outcome"},
		),
		undo: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "declutter_undo_total",
				Help: "Undo candidates, by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "declutter_run_duration_seconds",
				Help:    "Wall time of organize and undo runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordCategorization counts one categorization result.
func (m *Metrics) RecordCategorization(source string, degraded bool) {
	if m == nil {
		return
	}
	if source == "" {
		source = "none"
	}
	m.categorizations.WithLabelValues(source).Inc()
	if degraded {
		m.failures.Inc()
	}
}

// RequestStarted increments the in-flight gauge.
func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

// RequestFinished decrements the in-flight gauge.
func (m *Metrics) RequestFinished() {
	if m == nil {
		return
	}
	m.inflight.Dec()
}

// RecordMove counts one executed plan entry.
func (m *Metrics) RecordMove(outcome string) {
	if m == nil {
		return
	}
	m.moves.WithLabelValues(outcome).Inc()
}

// RecordUndo counts one processed undo candidate.
func (m *Metrics) RecordUndo(outcome string) {
	if m == nil {
		return
	}
	m.undo.WithLabelValues(outcome).Inc()
}

// RecordRun observes the duration of a run of the given kind.
func (m *Metrics) RecordRun(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// WriteTextfile writes all metrics in the text exposition format. The file
// name must end in .prom for node_exporter to pick it up.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if filepath.Ext(path) != ".prom" {
		return fmt.Errorf("metrics textfile %q must end in .prom", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
