// Package metrics exposes planning counters and cache statistics to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records plan outcomes and cache lookups. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	plansTotal   *prometheus.CounterVec
	planDuration *prometheus.HistogramVec
	changesTotal *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	caches       *cacheCollector
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		plansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netpatch_plans_total",
			Help: "Total patch plans computed.",
		}, []string{"vendor", "result"}),
		planDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netpatch_plan_duration_seconds",
			Help:    "Time spent computing a patch plan.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"vendor"}),
		changesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netpatch_diff_rows_total",
			Help: "Total changed rows found by diffs.",
		}, []string{"vendor"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netpatch_cache_hits_total",
			Help: "Total cache lookups served from cache.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netpatch_cache_misses_total",
			Help: "Total cache lookups that compiled a new entry.",
		}, []string{"cache"}),
		caches: newCacheCollector(),
	}
	for _, c := range []prometheus.Collector{
		m.plansTotal, m.planDuration, m.changesTotal, m.cacheHits, m.cacheMisses, m.caches,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CacheHit implements pattern.Observer.
func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

// CacheMiss implements pattern.Observer.
func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// ObservePlan records one plan for vendor.
func (m *Metrics) ObservePlan(vendor string, took time.Duration, changes int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.plansTotal.WithLabelValues(vendor, result).Inc()
	m.planDuration.WithLabelValues(vendor).Observe(took.Seconds())
	if changes > 0 {
		m.changesTotal.WithLabelValues(vendor).Add(float64(changes))
	}
}

// TrackCache reports the size of a cache on every scrape.
func (m *Metrics) TrackCache(name string, size func() int) {
	if m == nil {
		return
	}
	m.caches.track(name, size)
}
