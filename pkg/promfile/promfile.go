// Package promfile provides Prometheus metrics for mirror passes, exported in
// the node_exporter textfile format after every pass.
package promfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/paulschiretz/pgl-mirror/pkg/pathsync"
	"github.com/paulschiretz/pgl-mirror/pkg/util"
)

// Exporter owns a private registry so that repeated construction in one
// process (tests, several engines) never collides on the default registry.
type Exporter struct {
	registry *prometheus.Registry

	passesTotal       *prometheus.CounterVec
	actionsTotal      *prometheus.CounterVec
	errorsTotal       prometheus.Counter
	bytesWrittenTotal prometheus.Counter
	passDuration      prometheus.Histogram
	lastPassTimestamp prometheus.Gauge
	rootEntries       *prometheus.GaugeVec
}

// New creates an Exporter with metric names prefixed by namespace.
func New(namespace string) *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Exporter{
		registry: reg,
		passesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of mirror passes by result",
			},
			[]string{"result"},
		),
		actionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of replica changes by entity and method",
			},
			[]string{"entity", "method"},
		),
		errorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entry_errors_total",
				Help:      "Total number of per-entry copy and removal failures",
			},
		),
		bytesWrittenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_written_total",
				Help:      "Total bytes written to the replica",
			},
		),
		passDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Mirror pass duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		lastPassTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_pass_timestamp_seconds",
				Help:      "Unix time at which the last pass finished",
			},
		),
		rootEntries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "root_entries",
				Help:      "Entries found in each root at the start of the last pass",
			},
			[]string{"root", "entity"},
		),
	}
}

// Record adds the outcome of one pass. passErr is the error Reconcile returned, if any.
func (e *Exporter) Record(report *pathsync.Report, passErr error) {
	result := "ok"
	if passErr != nil {
		result = "aborted"
	}
	e.passesTotal.WithLabelValues(result).Inc()
	if report == nil {
		return
	}

	for _, a := range report.Actions() {
		e.actionsTotal.WithLabelValues(a.Kind().String(), a.Method()).Inc()
	}
	e.errorsTotal.Add(float64(len(report.Errors)))
	e.bytesWrittenTotal.Add(float64(report.BytesWritten))
	e.passDuration.Observe(report.Duration.Seconds())
	e.lastPassTimestamp.Set(float64(report.StartedAt.Add(report.Duration).Unix()))

	e.rootEntries.WithLabelValues("source", "file").Set(float64(report.SourceFiles))
	e.rootEntries.WithLabelValues("source", "folder").Set(float64(report.SourceFolders))
	e.rootEntries.WithLabelValues("replica", "file").Set(float64(report.ReplicaFiles))
	e.rootEntries.WithLabelValues("replica", "folder").Set(float64(report.ReplicaFolders))
}

// Gatherer exposes the registry, for tests and for callers that want to serve it.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.registry
}

// WriteTextfile writes the current metrics to path. The file is replaced
// atomically so a collector never reads a partial file.
func (e *Exporter) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("metrics textfile path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
