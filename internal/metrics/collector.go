// Package metrics exposes archiver progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "record_archiver"

// Run outcomes used as the "outcome" label.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeInterrupted = "interrupted"
)

// Collector records archiver metrics in its own registry. It implements
// pipeline.Observer.
type Collector struct {
	registry *prometheus.Registry

	archived    prometheus.Counter
	purged      prometheus.Counter
	absent      prometheus.Counter
	throttles   prometheus.Counter
	backoff     prometheus.Histogram
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// NewCollector creates a collector. If registry is nil a new one is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_archived_total",
			Help:      "Archive objects written, including rewrites after a throttled purge.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_purged_total",
			Help:      "Records deleted from the source collection.",
		}),
		absent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_absent_total",
			Help:      "Purges that found the record already gone.",
		}),
		throttles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_backoffs_total",
			Help:      "Backoff pauses taken after a throttled request.",
		}),
		backoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "throttle_backoff_seconds",
			Help:      "Length of each throttling backoff pause.",
			Buckets:   []float64{0.5, 1, 1.5, 2, 2.5, 3, 5, 10},
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of each run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful run finished.",
		}),
	}

	registry.MustRegister(
		c.archived,
		c.purged,
		c.absent,
		c.throttles,
		c.backoff,
		c.runs,
		c.runDuration,
		c.lastSuccess,
	)
	return c
}

// RecordArchived counts one archive write.
func (c *Collector) RecordArchived(string) {
	c.archived.Inc()
}

// RecordPurged counts a purge; zero deletions count as absent.
func (c *Collector) RecordPurged(deleted int) {
	if deleted == 0 {
		c.absent.Inc()
		return
	}
	c.purged.Add(float64(deleted))
}

// Throttled records one backoff pause.
func (c *Collector) Throttled(delay time.Duration) {
	c.throttles.Inc()
	c.backoff.Observe(delay.Seconds())
}

// RunFinished records the outcome and duration of a run.
func (c *Collector) RunFinished(outcome string, duration time.Duration, finishedAt time.Time) {
	c.runs.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		c.lastSuccess.Set(float64(finishedAt.Unix()))
	}
}

// Registry returns the registry the metrics are registered in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
