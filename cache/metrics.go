package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instrumentation this package registers once
// in init and the local tier reports into.
var (
	Hits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazbom",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Number of cache lookups that found a live entry, by tier.",
	}, []string{"tier"})

	Misses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazbom",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Number of cache lookups that found no live entry, by tier.",
	}, []string{"tier"})

	Evictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bazbom",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Number of local cache entries evicted by LRU.",
	})
)

func init() {
	prometheus.MustRegister(Hits, Misses, Evictions)
}
