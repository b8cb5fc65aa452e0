// Package metrics exposes Prometheus collectors for pipeline coordination:
// run and stage outcomes, batch latency, store sweeps and file-cache
// traffic. A *Metrics value is passed to the components that should record;
// a nil *Metrics no-ops every method so instrumentation stays optional.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Options configures metric construction.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "stageflow".
	Namespace string
	// Registerer receives the collectors. Defaults to
	// prometheus.DefaultRegisterer; note the default registerer can host
	// only one Metrics instance per process. Tests should inject
	// prometheus.NewRegistry().
	Registerer prometheus.Registerer
}

// Metrics holds the Prometheus collectors recorded by the pipeline engine,
// the batch executor, the context store and the file cache.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec // label: outcome (success|failed)
	WavesTotal    prometheus.Counter
	StagesTotal   *prometheus.CounterVec // label: status (success|failed|skipped)
	BatchDuration prometheus.Histogram
	TasksInFlight prometheus.Gauge

	StoreSweepsTotal prometheus.Counter
	StoreSweptTotal  prometheus.Counter

	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
}

// New creates and registers the collectors.
func New(optFns ...func(o *Options)) *Metrics {
	opts := Options{
		Namespace:  "stageflow",
		Registerer: prometheus.DefaultRegisterer,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	factory := promauto.With(opts.Registerer)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),

		WavesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "waves_total",
				Help:      "Total number of waves executed",
			},
		),

		StagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "stages_total",
				Help:      "Total number of stages by terminal status",
			},
			[]string{"status"},
		),

		BatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: opts.Namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of task batches",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
		),

		TasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: opts.Namespace,
				Name:      "tasks_in_flight",
				Help:      "Number of batch tasks currently executing",
			},
		),

		StoreSweepsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "store_sweeps_total",
				Help:      "Total number of context store cleanup sweeps",
			},
		),

		StoreSweptTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "store_swept_entries_total",
				Help:      "Total number of expired entries removed by sweeps",
			},
		),

		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of file cache hits",
			},
		),

		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of file cache misses",
			},
		),

		CacheEvictionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: opts.Namespace,
				Name:      "cache_evictions_total",
				Help:      "Total number of file cache evictions",
			},
		),
	}
}

// RecordRun records a completed pipeline run.
func (m *Metrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

// RecordWave records one executed wave.
func (m *Metrics) RecordWave() {
	if m == nil {
		return
	}
	m.WavesTotal.Inc()
}

// RecordStage records a stage reaching a terminal status.
func (m *Metrics) RecordStage(status string) {
	if m == nil {
		return
	}
	m.StagesTotal.WithLabelValues(status).Inc()
}

// RecordBatch records the duration of a task batch.
func (m *Metrics) RecordBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// TaskStarted increments the in-flight task gauge.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.TasksInFlight.Inc()
}

// TaskFinished decrements the in-flight task gauge.
func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.TasksInFlight.Dec()
}

// RecordSweep records a store cleanup sweep and how many entries it removed.
func (m *Metrics) RecordSweep(removed int) {
	if m == nil {
		return
	}
	m.StoreSweepsTotal.Inc()
	m.StoreSweptTotal.Add(float64(removed))
}

// RecordCacheHit records a file cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a file cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// RecordCacheEviction records a file cache eviction.
func (m *Metrics) RecordCacheEviction() {
	if m == nil {
		return
	}
	m.CacheEvictionsTotal.Inc()
}
