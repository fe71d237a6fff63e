// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_cache_hits_total",
			Help: "Total number of template cache hits",
		},
		[]string{"template_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_cache_misses_total",
			Help: "Total number of template cache misses, including backend errors treated as misses",
		},
		[]string{"template_type"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_cache_errors_total",
			Help: "Total number of swallowed cache backend errors",
		},
		[]string{"operation"},
	)

	InvalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidation_events_total",
			Help: "Total number of cache invalidation events processed",
		},
		[]string{"event_type"},
	)

	InvalidatedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_invalidated_keys_total",
			Help: "Total number of cache keys deleted by invalidation",
		},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Total number of rate limit admission decisions",
		},
		[]string{"outcome"},
	)

	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "template_resolution_duration_seconds",
			Help: "Duration of template value resolution in seconds",
		},
		[]string{"template_type"},
	)
)
