// Package metrics exposes Prometheus instrumentation for the layout and
// rendering pipeline. A nil *Recorder is valid and records nothing, so
// library code and tests can run without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"daybook/internal/layout"
)

const namespace = "daybook"

// Stage names used with ObserveStage.
const (
	StageFetch  = "fetch"
	StageLayout = "layout"
	StageHTML   = "html"
	StagePDF    = "pdf"
)

// Recorder owns a dedicated registry and the pipeline collectors.
type Recorder struct {
	registry *prometheus.Registry

	eventsPacked   prometheus.Counter
	clusterLanes   prometheus.Histogram
	pages          prometheus.Counter
	overfullPages  prometheus.Counter
	continuations  prometheus.Counter
	sourceFailures *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
}

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		eventsPacked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_packed_total",
			Help:      "Timed events placed on a timeline.",
		}),
		clusterLanes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_lanes",
			Help:      "Number of lanes per overlap cluster.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
		}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_allocated_total",
			Help:      "Text pages produced by the allocator.",
		}),
		overfullPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_overfull_total",
			Help:      "Single-block pages that exceed the page capacity.",
		}),
		continuations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "continuation_blocks_total",
			Help:      "Block parts carried over from a previous page.",
		}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Calendar source fetches that failed and were skipped.",
		}, []string{"source"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 3, 9),
		}, []string{"stage"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.eventsPacked,
		r.clusterLanes,
		r.pages,
		r.overfullPages,
		r.continuations,
		r.sourceFailures,
		r.stageDuration,
	)
	return r
}

// Registry returns the dedicated registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveDay records the layout of one day.
func (r *Recorder) ObserveDay(placements []layout.Placement, pages []layout.Page) {
	if r == nil {
		return
	}
	r.eventsPacked.Add(float64(len(placements)))

	cluster := -1
	for _, p := range placements {
		if p.Cluster == cluster {
			continue
		}
		cluster = p.Cluster
		r.clusterLanes.Observe(float64(p.Lanes))
	}

	r.pages.Add(float64(len(pages)))
	for _, pg := range pages {
		if pg.Overfull {
			r.overfullPages.Inc()
		}
		for _, b := range pg.Blocks {
			if b.Continuation {
				r.continuations.Inc()
			}
		}
	}
}

// SourceFailed counts a skipped calendar source.
func (r *Recorder) SourceFailed(source string) {
	if r == nil {
		return
	}
	r.sourceFailures.WithLabelValues(source).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
