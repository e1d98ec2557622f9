// Package metrics provides Prometheus metrics for earworm detection and
// playlist publication.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "earworms"

// Manager holds every metric of the tool.
type Manager struct {
	registry prometheus.Registerer

	// Detection
	eventsLoaded      prometheus.Gauge
	candidates        *prometheus.GaugeVec
	rankedTracks      prometheus.Gauge
	detectionDuration prometheus.Histogram
	merges            *prometheus.CounterVec

	// Resolution and publication
	catalogLookups      *prometheus.CounterVec
	catalogLatency      prometheus.Histogram
	resolutions         *prometheus.CounterVec
	correctionsStored   prometheus.Counter
	publishBatches      *prometheus.CounterVec
	lastfmPages         prometheus.Counter
	circuitBreakerState *prometheus.GaugeVec
	errorsByComponent   *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		registry: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsLoaded = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "events_loaded",
		Help:      "Number of play events in the analysed log",
	})
	m.candidates = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "candidates",
		Help:      "Candidates produced per detection model before capping",
	}, []string{"model"})
	m.rankedTracks = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "ranked_tracks",
		Help:      "Tracks in the final ranked playlist",
	})
	m.detectionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "detection_duration_seconds",
		Help:      "Time spent running detectors and aggregation",
		Buckets:   prometheus.DefBuckets,
	})
	m.merges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rank_merges_total",
		Help:      "Rank store updates by outcome (inserted, replaced, discarded)",
	}, []string{"outcome"})

	m.catalogLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "catalog_lookups_total",
		Help:      "Catalog searches by outcome (found, missing, error)",
	}, []string{"outcome"})
	m.catalogLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "catalog_lookup_duration_seconds",
		Help:      "Latency of catalog searches",
		Buckets:   prometheus.DefBuckets,
	})
	m.resolutions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "resolutions_total",
		Help:      "Resolved tracks by outcome (matched, corrected, skipped)",
	}, []string{"outcome"})
	m.correctionsStored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "corrections_stored_total",
		Help:      "Corrections appended to the correction cache",
	})
	m.publishBatches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "publish_batches_total",
		Help:      "Playlist add batches by outcome (ok, error)",
	}, []string{"outcome"})
	m.lastfmPages = auto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "lastfm_pages_total",
		Help:      "Recent-tracks pages fetched from Last.fm",
	})
	m.circuitBreakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "type"})
}

// SetEventsLoaded records the size of the analysed log.
func SetEventsLoaded(n int) {
	globalManager.eventsLoaded.Set(float64(n))
}

// SetCandidates records how many candidates a model produced.
func SetCandidates(model string, n int) {
	globalManager.candidates.WithLabelValues(model).Set(float64(n))
}

// SetRankedTracks records the final playlist length.
func SetRankedTracks(n int) {
	globalManager.rankedTracks.Set(float64(n))
}

// ObserveDetectionDuration records detection time in seconds.
func ObserveDetectionDuration(seconds float64) {
	globalManager.detectionDuration.Observe(seconds)
}

// RecordMerge counts a rank store update.
func RecordMerge(outcome string) {
	globalManager.merges.WithLabelValues(outcome).Inc()
}

// RecordCatalogLookup counts a catalog search and its latency in seconds.
func RecordCatalogLookup(outcome string, seconds float64) {
	globalManager.catalogLookups.WithLabelValues(outcome).Inc()
	globalManager.catalogLatency.Observe(seconds)
}

// RecordResolution counts a finished track resolution.
func RecordResolution(outcome string) {
	globalManager.resolutions.WithLabelValues(outcome).Inc()
}

// RecordCorrectionStored counts a persisted correction.
func RecordCorrectionStored() {
	globalManager.correctionsStored.Inc()
}

// RecordPublishBatch counts a playlist add batch.
func RecordPublishBatch(outcome string) {
	globalManager.publishBatches.WithLabelValues(outcome).Inc()
}

// RecordLastfmPage counts a fetched Last.fm page.
func RecordLastfmPage() {
	globalManager.lastfmPages.Inc()
}

// SetCircuitBreakerState records a breaker state transition.
func SetCircuitBreakerState(name string, state float64) {
	globalManager.circuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordError counts an error by component and type.
func RecordError(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the registry holding the global metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile dumps the global registry in the text exposition format,
// suitable for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return nil
}
