package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Image cache metrics
var (
	ImageCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_image_cache_hits_total",
			Help: "Total number of image cache lookups served from memory",
		},
	)

	ImageCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_image_cache_misses_total",
			Help: "Total number of image cache lookups that were absent or stale",
		},
	)

	ImageCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_image_cache_evictions_total",
			Help: "Total number of evicted image cache entries",
		},
		[]string{"reason"}, // "expired", "capacity"
	)

	ImageCacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_image_cache_fetches_total",
			Help: "Total number of image fetches",
		},
		[]string{"status"}, // "ok", "error"
	)

	ImageCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reel_image_cache_entries",
			Help: "Number of entries currently held by the image cache",
		},
	)
)

// Playback metrics
var (
	PlaybackStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_playback_state_transitions_total",
			Help: "Total number of playback state transitions",
		},
		[]string{"to"},
	)

	PlaybackErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_playback_errors_total",
			Help: "Total number of playback errors",
		},
		[]string{"category", "fatal"},
	)

	FullscreenFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reel_fullscreen_failures_total",
			Help: "Total number of fullscreen requests where every method failed",
		},
	)
)

// Catalog metrics
var (
	CatalogSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_catalog_syncs_total",
			Help: "Total number of catalog syncs",
		},
		[]string{"source"}, // "cache", "network", "error"
	)
)
