package statementcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits counts statement executions served from cache.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statement_cache_hits_total",
			Help: "Total number of statement executions served from cache",
		},
	)

	// cacheMisses counts cacheable statement executions that had to be
	// delegated to the executor.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statement_cache_misses_total",
			Help: "Total number of cacheable statement executions delegated to the executor",
		},
	)

	// cacheInvalidations counts partition invalidations by mode
	// (immediate for autocommit writes, deferred for transactional ones).
	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_cache_invalidations_total",
			Help: "Total number of partition invalidations",
		},
		[]string{"mode"}, // "immediate" | "deferred"
	)

	// storeErrors counts degraded store interactions by operation.
	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statement_cache_store_errors_total",
			Help: "Total number of cache store errors handled by degrading to pass-through",
		},
		[]string{"operation"}, // "get" | "put" | "remove_by_tag"
	)

	// lockWaitSeconds tracks time spent waiting for partition locks.
	lockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "statement_cache_lock_wait_seconds",
			Help:    "Time spent acquiring partition locks",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
)
