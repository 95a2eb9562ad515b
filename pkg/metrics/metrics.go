// Package metrics provides Prometheus metrics for the CHAOS highlight pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chaos"

// Manager holds all Prometheus collectors for the pipeline.
type Manager struct {
	// Event ingestion
	eventsLoaded  *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec

	// Correlation engine
	windowsSeeded      prometheus.Counter
	windowsMerged      prometheus.Counter
	highlightsExported prometheus.Counter
	highlightScore     prometheus.Histogram

	// Pipeline health
	stageDuration prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	videosTotal   prometheus.Gauge
	activeWorkers prometheus.Gauge
}

var (
	manager *Manager
	once    sync.Once
)

func get() *Manager {
	once.Do(func() {
		manager = newManager(prometheus.DefaultRegisterer)
	})
	return manager
}

func newManager(reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)
	return &Manager{
		eventsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_loaded_total",
			Help:      "Events accepted into the per-video event store, by stream type.",
		}, []string{"stream"}),
		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped before entering the event store, by reason.",
		}, []string{"reason"}),
		windowsSeeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_seeded_total",
			Help:      "Candidate highlight windows opened by anchor events.",
		}),
		windowsMerged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_merged_total",
			Help:      "Window pairs merged during overlap resolution.",
		}),
		highlightsExported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "highlights_exported_total",
			Help:      "Highlight windows written to highlight manifests.",
		}),
		highlightScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "highlight_score",
			Help:      "Composite scores of exported highlights.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		stageDuration: *factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage per video.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Per-video stage failures, by stage.",
		}, []string{"stage"}),
		videosTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "videos_total",
			Help:      "Videos tracked in the pipeline manifest.",
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Video workers currently processing a stage.",
		}),
	}
}

// RecordEventLoaded counts an event accepted into an event store.
func RecordEventLoaded(stream string) { get().eventsLoaded.WithLabelValues(stream).Inc() }

// RecordEventDropped counts an event rejected before the event store.
// Known reasons: malformed, below_threshold, duplicate.
func RecordEventDropped(reason string) { get().eventsDropped.WithLabelValues(reason).Inc() }

// RecordWindowSeeded counts an anchor opening a candidate window.
func RecordWindowSeeded() { get().windowsSeeded.Inc() }

// RecordWindowsMerged counts merges performed during overlap resolution.
func RecordWindowsMerged(n int) { get().windowsMerged.Add(float64(n)) }

// RecordHighlightExported records one exported highlight and its score.
func RecordHighlightExported(score float64) {
	get().highlightsExported.Inc()
	get().highlightScore.Observe(score)
}

// RecordStageDuration records the wall time of one stage run for one video.
func RecordStageDuration(stage string, seconds float64) {
	get().stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordStageFailure counts a per-video stage failure.
func RecordStageFailure(stage string) { get().stageFailures.WithLabelValues(stage).Inc() }

// UpdateVideosTotal sets the number of manifest-tracked videos.
func UpdateVideosTotal(n int) { get().videosTotal.Set(float64(n)) }

// WorkerStarted and WorkerFinished track the busy worker gauge.
func WorkerStarted()  { get().activeWorkers.Inc() }
func WorkerFinished() { get().activeWorkers.Dec() }

// Handler returns the HTTP handler serving the Prometheus exposition format.
func Handler() http.Handler {
	get()
	return promhttp.Handler()
}
