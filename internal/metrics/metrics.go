// Package metrics exposes Prometheus collectors for the sync service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal              *prometheus.CounterVec
	phaseItemsTotal            *prometheus.CounterVec
	catalogCallsTotal          *prometheus.CounterVec
	fetchesTotal               *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	pendingTasks               prometheus.Gauge
	activeWorkers              prometheus.Gauge
	inlineTasksTotal           prometheus.Counter
	recoveredPanicsTotal       prometheus.Counter
	droppedEventsTotal         prometheus.Counter

	once sync.Once
)

// Init registers the collectors. It is safe to call this function multiple
// times; every Observe helper calls it.
func Init() {
	once.Do(func() {
		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judgesync_sync_runs_total",
				Help: "Total number of provider syncs, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		phaseItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judgesync_phase_items_total",
				Help: "Items handled by each publish phase, labeled by provider, phase and outcome.",
			},
			[]string{"provider", "phase", "outcome"},
		)

		catalogCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judgesync_catalog_calls_total",
				Help: "Catalog calls, labeled by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judgesync_fetches_total",
				Help: "Remote page and API fetches, labeled by host and outcome.",
			},
			[]string{"host", "outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "judgesync_http_requests_total",
				Help: "Total number of API requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "judgesync_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "judgesync_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		pendingTasks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "judgesync_pending_tasks",
				Help: "Number of tasks waiting in the dispatcher queue.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "judgesync_active_workers",
				Help: "Number of pool workers currently running a task.",
			},
		)

		inlineTasksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "judgesync_inline_tasks_total",
				Help: "Tasks executed by the dispatcher itself because the pool was saturated.",
			},
		)

		recoveredPanicsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "judgesync_recovered_panics_total",
				Help: "Task panics recovered by the worker pool or dispatcher.",
			},
		)

		droppedEventsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "judgesync_events_dropped_total",
				Help: "Sync events discarded because the event buffer was full.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveSync counts a finished sync run.
func ObserveSync(provider, status string) {
	Init()
	syncRunsTotal.WithLabelValues(provider, status).Inc()
}

// ObservePhase adds the per-item results of one publish phase.
func ObservePhase(provider, phase string, succeeded, failed int) {
	Init()
	phaseItemsTotal.WithLabelValues(provider, phase, outcome(true)).Add(float64(succeeded))
	phaseItemsTotal.WithLabelValues(provider, phase, outcome(false)).Add(float64(failed))
}

// ObserveCatalogCall counts one catalog call.
func ObserveCatalogCall(operation string, ok bool) {
	Init()
	catalogCallsTotal.WithLabelValues(operation, outcome(ok)).Inc()
}

// ObserveFetch counts one remote fetch.
func ObserveFetch(rawURL string, ok bool) {
	Init()
	fetchesTotal.WithLabelValues(SanitizeHost(rawURL), outcome(ok)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// SetPendingTasks publishes the current queue length.
func SetPendingTasks(n int) {
	Init()
	pendingTasks.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveInlineTask counts a task run by the dispatcher on saturation.
func ObserveInlineTask() {
	Init()
	inlineTasksTotal.Inc()
}

// ObserveRecoveredPanic counts a recovered task panic.
func ObserveRecoveredPanic() {
	Init()
	recoveredPanicsTotal.Inc()
}

// ObserveDroppedEvent counts a sync event lost to backpressure.
func ObserveDroppedEvent() {
	Init()
	droppedEventsTotal.Inc()
}
