// Package metrics records counters for one graph build on a private
// Prometheus registry and can dump them in the text exposition format.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weaver"

// Recorder holds the collectors for a run.
type Recorder struct {
	registry *prometheus.Registry

	filesScanned    prometheus.Counter
	filesUnreadable prometheus.Counter
	includes        *prometheus.CounterVec
	nodes           *prometheus.GaugeVec
	edges           prometheus.Gauge
	buildSeconds    prometheus.Histogram
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.filesScanned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "walker",
		Name:      "files_scanned_total",
		Help:      "Source files read and parsed.",
	})
	r.filesUnreadable = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "walker",
		Name:      "files_unreadable_total",
		Help:      "Source files skipped because they could not be read.",
	})
	r.includes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "includes_total",
		Help:      "Include directives seen, by form and resolution status.",
	}, []string{"form", "status"})
	r.nodes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "nodes",
		Help:      "Nodes in the finished graph, by resolution status.",
	}, []string{"status"})
	r.edges = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "edges",
		Help:      "Edges in the finished graph.",
	})
	r.buildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "build_duration_seconds",
		Help:      "Wall time spent building the graph.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	r.registry.MustRegister(
		r.filesScanned,
		r.filesUnreadable,
		r.includes,
		r.nodes,
		r.edges,
		r.buildSeconds,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) FileScanned() {
	if r != nil {
		r.filesScanned.Inc()
	}
}

func (r *Recorder) FileUnreadable() {
	if r != nil {
		r.filesUnreadable.Inc()
	}
}

// Include counts one include directive.
func (r *Recorder) Include(form string, resolved bool) {
	if r == nil {
		return
	}
	r.includes.WithLabelValues(form, status(resolved)).Inc()
}

// Graph records the shape of the finished graph and the time it took.
func (r *Recorder) Graph(resolved, unresolved, edges int, took time.Duration) {
	if r == nil {
		return
	}
	r.nodes.WithLabelValues(status(true)).Set(float64(resolved))
	r.nodes.WithLabelValues(status(false)).Set(float64(unresolved))
	r.edges.Set(float64(edges))
	r.buildSeconds.Observe(took.Seconds())
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// suitable for the node exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func status(resolved bool) string {
	if resolved {
		return "resolved"
	}
	return "unresolved"
}
