package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recruit_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recruit_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheEntrySize tracks the size of stored entries
	CacheEntrySize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recruit_cache_entry_size_bytes",
			Help:    "Size of stored cache entries in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match or If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recruit_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recruit_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// CachePurged tracks entries removed by endpoint purges
	CachePurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recruit_cache_purged_total",
			Help: "Total number of cache entries removed by purges",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recruit_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "purge"
	)
)
