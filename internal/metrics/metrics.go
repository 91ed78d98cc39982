// Package metrics provides Prometheus instrumentation for the social
// trading engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StatsRecomputes counts completed user stats recomputations.
	StatsRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "praxis_stats_recomputes_total",
		Help: "Total user stats recomputations",
	})

	// StatsRecomputeDuration tracks recompute latency.
	StatsRecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "praxis_stats_recompute_duration_seconds",
		Help:    "User stats recompute duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// LeaderboardCalculations counts leaderboard recalculations by
	// period, metric, and outcome.
	LeaderboardCalculations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "praxis_leaderboard_calculations_total",
		Help: "Total leaderboard recalculations",
	}, []string{"period", "metric", "status"})

	// FeedEventsTotal counts recorded feed events by type.
	FeedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "praxis_feed_events_total",
		Help: "Total feed events recorded",
	}, []string{"type"})

	// FeedEventsDropped counts suppressed best-effort feed emissions.
	FeedEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "praxis_feed_events_dropped_total",
		Help: "Feed emissions that failed and were suppressed",
	})

	// SyncedRecords counts records written by the sync services.
	SyncedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "praxis_synced_records_total",
		Help: "Records written by the upstream sync services",
	}, []string{"kind"})

	// WebSocketClients tracks connected feed subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "praxis_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "praxis_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "praxis_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; routes here are low-cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
