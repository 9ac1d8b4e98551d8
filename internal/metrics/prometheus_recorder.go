package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry       *prom.Registry
	phaseDuration  *prom.HistogramVec
	buildDuration  prom.Histogram
	buildOutcome   *prom.CounterVec
	retries        *prom.CounterVec
	retriesDead    *prom.CounterVec
	queueDepth     prom.Gauge
	cacheHits      *prom.GaugeVec
	cacheMisses    *prom.GaugeVec
	cacheEvictions *prom.GaugeVec
	cacheSize      *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers the blogsmith metric set.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}

	pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "blogsmith",
		Name:      "phase_duration_seconds",
		Help:      "Duration of individual build phases",
		Buckets:   prom.DefBuckets,
	}, []string{"phase"})
	pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "blogsmith",
		Name:      "build_duration_seconds",
		Help:      "Total build duration",
		Buckets:   prom.DefBuckets,
	})
	pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "blogsmith",
		Name:      "build_outcomes_total",
		Help:      "Build outcomes by final status",
	}, []string{"outcome"})
	pr.retries = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "blogsmith",
		Name:      "build_retries_total",
		Help:      "Transient build retries by phase",
	}, []string{"phase"})
	pr.retriesDead = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "blogsmith",
		Name:      "build_retries_exhausted_total",
		Help:      "Builds whose transient retries were exhausted, by phase",
	}, []string{"phase"})
	pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
		Namespace: "blogsmith",
		Name:      "queue_depth",
		Help:      "Number of jobs currently queued",
	})
	pr.cacheHits = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "blogsmith",
		Name:      "cache_hits",
		Help:      "Cumulative cache hits by cache",
	}, []string{"cache"})
	pr.cacheMisses = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "blogsmith",
		Name:      "cache_misses",
		Help:      "Cumulative cache misses by cache",
	}, []string{"cache"})
	pr.cacheEvictions = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "blogsmith",
		Name:      "cache_evictions",
		Help:      "Cumulative cache evictions by cache",
	}, []string{"cache"})
	pr.cacheSize = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "blogsmith",
		Name:      "cache_size",
		Help:      "Current cache entry count by cache",
	}, []string{"cache"})

	reg.MustRegister(
		pr.phaseDuration, pr.buildDuration, pr.buildOutcome,
		pr.retries, pr.retriesDead, pr.queueDepth,
		pr.cacheHits, pr.cacheMisses, pr.cacheEvictions, pr.cacheSize,
	)
	return pr
}

// Handler returns the HTTP handler serving this recorder's registry.
func (pr *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(pr.registry, promhttp.HandlerOpts{})
}

func (pr *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	pr.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	pr.buildDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncBuildOutcome(outcome string) {
	pr.buildOutcome.WithLabelValues(outcome).Inc()
}

func (pr *PrometheusRecorder) IncBuildRetry(phase string) {
	pr.retries.WithLabelValues(phase).Inc()
}

func (pr *PrometheusRecorder) IncBuildRetryExhausted(phase string) {
	pr.retriesDead.WithLabelValues(phase).Inc()
}

func (pr *PrometheusRecorder) SetQueueDepth(n int) {
	pr.queueDepth.Set(float64(n))
}

func (pr *PrometheusRecorder) SetCacheStats(cache string, hits, misses, evictions uint64, size int) {
	pr.cacheHits.WithLabelValues(cache).Set(float64(hits))
	pr.cacheMisses.WithLabelValues(cache).Set(float64(misses))
	pr.cacheEvictions.WithLabelValues(cache).Set(float64(evictions))
	pr.cacheSize.WithLabelValues(cache).Set(float64(size))
}
