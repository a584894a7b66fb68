package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// cacheCollector implements prometheus.Collector, reading cache sizes on
// each scrape.
type cacheCollector struct {
	entries *prometheus.Desc

	mu    sync.RWMutex
	sizes map[string]func() int
}

func newCacheCollector() *cacheCollector {
	return &cacheCollector{
		entries: prometheus.NewDesc(
			"netpatch_cache_entries",
			"Current number of entries held by a cache.",
			[]string{"cache"}, nil,
		),
		sizes: make(map[string]func() int),
	}
}

func (c *cacheCollector) track(name string, size func() int) {
	c.mu.Lock()
	c.sizes[name] = size
	c.mu.Unlock()
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	names := make([]string, 0, len(c.sizes))
	for name := range c.sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	sizes := make([]int, len(names))
	for i, name := range names {
		sizes[i] = c.sizes[name]()
	}
	c.mu.RUnlock()

	for i, name := range names {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue,
			float64(sizes[i]), name)
	}
}
