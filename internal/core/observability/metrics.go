// Package observability holds the process-wide prometheus collectors.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "request"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	wfstTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfst_transactions_total",
			Help: "WFS-T transactions by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	schemaFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfst_schema_fallbacks_total",
			Help: "Schema discoveries that fell back to the default schema.",
		},
		[]string{"layer"},
	)

	schemaCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_cache_results_total",
			Help: "Schema cache lookups by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)

	selectionHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selection_hits_total",
			Help: "Features returned by drag-box selections.",
		},
	)

	selectionWorlds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selection_worlds",
			Help:    "Number of world copies a selection drag spans.",
			Buckets: []float64{1, 2, 3, 4, 6, 8},
		},
	)

	drawSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draw_sessions_active",
			Help: "Draw sessions currently held in the registry.",
		},
	)

	changeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_total",
			Help: "Feature change events by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)
)

// app_build_info is left out: the metrics provider exposes its own.
var all = []prometheus.Collector{
	httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
	wfstTransactions, schemaFallbacks, schemaCacheResults,
	selectionHits, selectionWorlds, drawSessionsActive, changeEvents,
}

// Register adds the collectors to a custom registry, e.g. the one behind a
// dedicated metrics listener. Collectors already present are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range all {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream, request string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, request).Observe(durationSeconds)
}

func IncTransaction(op string, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	wfstTransactions.WithLabelValues(op, outcome).Inc()
}

func IncSchemaFallback(layer string) {
	schemaFallbacks.WithLabelValues(layer).Inc()
}

func IncSchemaCache(backend string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	schemaCacheResults.WithLabelValues(backend, outcome).Inc()
}

func ObserveSelection(worlds, hits int) {
	selectionWorlds.Observe(float64(worlds))
	selectionHits.Add(float64(hits))
}

func SetDrawSessions(n int) {
	drawSessionsActive.Set(float64(n))
}

// IncChangeEvent counts change events; direction is "publish" or "consume".
func IncChangeEvent(direction, outcome string) {
	changeEvents.WithLabelValues(direction, outcome).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
