// Package metrics defines the Prometheus collectors for sync runs, catalog traffic and the token lifecycle.
//
// Collectors register with the default registry on import and are served by the server's /metrics route.
//
// Usage:
//
//	metrics.RecordRun("schedule", 2*time.Minute)
//	metrics.RecordVenue("metro-chicago", "failed")
//	metrics.RecordArtistLookup("cache")
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run Metrics

	// RunsTotal counts completed runs by trigger.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upcoming_sync_runs_total",
			Help: "Total number of completed sync runs",
		},
		[]string{"trigger"},
	)

	// RunDuration tracks wall time of whole runs.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upcoming_sync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"trigger"},
	)

	// RunsSkippedTotal counts triggers refused because a run was in progress.
	RunsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upcoming_sync_runs_skipped_total",
			Help: "Total number of triggers skipped because a run was already in progress",
		},
		[]string{"trigger"},
	)

	// RunInProgress is 1 while a run holds the run lock.
	RunInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upcoming_sync_run_in_progress",
			Help: "Whether a sync run is currently in progress",
		},
	)

	// Venue Metrics

	// VenueSyncsTotal counts venue syncs by venue and outcome.
	VenueSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upcoming_venue_syncs_total",
			Help: "Total number of venue syncs by outcome",
		},
		[]string{"venue", "outcome"},
	)

	// VenueTracks is the track count written to each venue playlist by its last successful sync.
	VenueTracks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upcoming_venue_playlist_tracks",
			Help: "Number of tracks written to the venue playlist by the last successful sync",
		},
		[]string{"venue"},
	)

	// Artist Metrics

	// ArtistLookupsTotal counts resolutions by source: cache, catalog, composite or miss.
	ArtistLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upcoming_artist_lookups_total",
			Help: "Total number of artist resolutions by source",
		},
		[]string{"source"},
	)

	// ArtistEvictionsTotal counts cached artists removed by stale cleanup.
	ArtistEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upcoming_artist_cache_evictions_total",
			Help: "Total number of cached artists removed by stale lineup cleanup",
		},
	)

	// Catalog Metrics

	// CatalogRequestsTotal counts catalog API requests by operation and status class.
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upcoming_catalog_requests_total",
			Help: "Total number of catalog API requests",
		},
		[]string{"operation", "status"},
	)

	// CatalogRequestDuration tracks catalog request latency.
	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upcoming_catalog_request_duration_seconds",
			Help:    "Duration of catalog API requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// BreakerState is the catalog circuit breaker state: 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upcoming_catalog_breaker_state",
			Help: "Catalog circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// TokenRefreshesTotal counts OAuth refresh attempts by outcome.
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upcoming_token_refreshes_total",
			Help: "Total number of OAuth token refresh attempts",
		},
		[]string{"outcome"},
	)
)

// RecordRun records a finished run.
func RecordRun(trigger string, duration time.Duration) {
	RunsTotal.WithLabelValues(trigger).Inc()
	RunDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// RecordSkippedRun records a trigger that found a run in progress.
func RecordSkippedRun(trigger string) {
	RunsSkippedTotal.WithLabelValues(trigger).Inc()
}

// SetRunInProgress flips the in-progress gauge.
func SetRunInProgress(running bool) {
	if running {
		RunInProgress.Set(1)
		return
	}
	RunInProgress.Set(0)
}

// RecordVenue records one venue outcome: "success" or "failed".
func RecordVenue(venue, outcome string) {
	VenueSyncsTotal.WithLabelValues(venue, outcome).Inc()
}

// SetVenueTracks records the playlist size written for venue.
func SetVenueTracks(venue string, n int) {
	VenueTracks.WithLabelValues(venue).Set(float64(n))
}

// RecordArtistLookup records where a resolution was answered from.
func RecordArtistLookup(source string) {
	ArtistLookupsTotal.WithLabelValues(source).Inc()
}

// RecordEviction records a stale artist removed from the cache.
func RecordEviction() {
	ArtistEvictionsTotal.Inc()
}

// RecordCatalogRequest records one catalog call.
func RecordCatalogRequest(operation, status string, duration time.Duration) {
	CatalogRequestsTotal.WithLabelValues(operation, status).Inc()
	CatalogRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetBreakerState records a breaker transition.
func SetBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordTokenRefresh records a refresh attempt: "success" or "failed".
func RecordTokenRefresh(outcome string) {
	TokenRefreshesTotal.WithLabelValues(outcome).Inc()
}
