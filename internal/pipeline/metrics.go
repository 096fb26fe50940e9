package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	buildsTotal    *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec
	buildErrors    *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	indexesCreated prometheus.Counter
}

// NewMetrics creates the pipeline metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetmill_asset_builds_total",
				Help: "Total number of assets built",
			},
			[]string{"kind"},
		),
		buildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assetmill_asset_build_duration_seconds",
				Help:    "Asset build latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		buildErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetmill_asset_build_errors_total",
				Help: "Total number of failed asset builds",
			},
			[]string{"kind"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetmill_cache_hits_total",
				Help: "Persistent cache lookups that returned a fresh asset",
			},
			[]string{"kind"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetmill_cache_misses_total",
				Help: "Persistent cache lookups that required a build",
			},
			[]string{"kind"},
		),
		indexesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "assetmill_indexes_created_total",
				Help: "Index snapshots taken from an environment",
			},
		),
	}
}

// RecordBuild records one asset build.
func (m *Metrics) RecordBuild(kind Kind, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.buildErrors.WithLabelValues(string(kind)).Inc()
		return
	}
	m.buildsTotal.WithLabelValues(string(kind)).Inc()
	m.buildDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

// RecordCacheHit records a persistent cache hit.
func (m *Metrics) RecordCacheHit(kind Kind) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(string(kind)).Inc()
}

// RecordCacheMiss records a persistent cache miss.
func (m *Metrics) RecordCacheMiss(kind Kind) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordIndex() {
	if m == nil {
		return
	}
	m.indexesCreated.Inc()
}
