// Package telemetry records build metrics and build history.
// Everything stays local: metrics go to a node-exporter textfile, history to
// an SQLite database in the project's data directory.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build status label values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Artifact kind label values.
const (
	KindIndex = "index"
	KindStore = "store"
)

// BuildMetrics holds the Prometheus collectors of one run.
// Collectors live on a private registry so that repeated runs in one process
// (watch mode, tests) never collide with the global default registry.
type BuildMetrics struct {
	registry *prometheus.Registry

	DocumentsTotal *prometheus.CounterVec
	DroppedTotal   *prometheus.CounterVec
	BuildsTotal    *prometheus.CounterVec
	BuildDuration  *prometheus.HistogramVec
	ArtifactBytes  *prometheus.GaugeVec
}

// NewBuildMetrics creates and registers the build collectors.
func NewBuildMetrics() *BuildMetrics {
	m := &BuildMetrics{
		registry: prometheus.NewRegistry(),

		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "localsearch",
				Name:      "documents_total",
				Help:      "Documents indexed per named index",
			},
			[]string{"index"},
		),
		DroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "localsearch",
				Name:      "documents_dropped_total",
				Help:      "Documents dropped for a missing reference value",
			},
			[]string{"index"},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "localsearch",
				Name:      "builds_total",
				Help:      "Named index builds by outcome",
			},
			[]string{"index", "status"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "localsearch",
				Name:      "build_duration_seconds",
				Help:      "Duration of one named index build in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"index"},
		),
		ArtifactBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "localsearch",
				Name:      "artifact_bytes",
				Help:      "Size of the latest built artifact",
			},
			[]string{"index", "kind"},
		),
	}

	m.registry.MustRegister(
		m.DocumentsTotal,
		m.DroppedTotal,
		m.BuildsTotal,
		m.BuildDuration,
		m.ArtifactBytes,
	)
	return m
}

// Registry exposes the private registry (for tests and exporters).
func (m *BuildMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBuild records one finished build of index.
func (m *BuildMetrics) ObserveBuild(index string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	m.BuildsTotal.WithLabelValues(index, status).Inc()
	m.BuildDuration.WithLabelValues(index).Observe(elapsed.Seconds())
}

// ObserveDocuments records how many documents were kept and dropped.
func (m *BuildMetrics) ObserveDocuments(index string, kept, dropped int) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(index).Add(float64(kept))
	m.DroppedTotal.WithLabelValues(index).Add(float64(dropped))
}

// ObserveArtifacts records artifact sizes.
func (m *BuildMetrics) ObserveArtifacts(index string, indexBytes, storeBytes int) {
	if m == nil {
		return
	}
	m.ArtifactBytes.WithLabelValues(index, KindIndex).Set(float64(indexBytes))
	m.ArtifactBytes.WithLabelValues(index, KindStore).Set(float64(storeBytes))
}

// WriteTextfile writes all metrics to path in the node-exporter textfile
// format.
func (m *BuildMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
