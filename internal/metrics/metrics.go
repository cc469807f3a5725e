// Package metrics provides Prometheus instrumentation for the stake engine.
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
	// StakesTotal counts stake operations.
	StakesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stake_engine_stakes_total",
		Help: "Total number of stakes recorded",
	})

	// UnstakesTotal counts unstake operations, partitioned by timing.
	UnstakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stake_engine_unstakes_total",
		Help: "Total number of unstakes settled",
	}, []string{"timing"}) // "early" or "on_time"

	// SettlementLatency tracks unstake settlement latency.
	SettlementLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stake_engine_settlement_latency_seconds",
		Help:    "Unstake settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"timing"})

	// TotalStaked mirrors the staked-principal accumulator, in base units
	// scaled down to floats for dashboard use only.
	TotalStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stake_engine_total_staked_units",
		Help: "Sum of locked principal in base-asset units",
	})

	// YieldPool mirrors the undistributed-yield accumulator.
	YieldPool = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stake_engine_yield_pool_units",
		Help: "Undistributed yield in base-asset units",
	})

	// OpenPositions tracks the number of open positions.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stake_engine_open_positions",
		Help: "Number of currently open positions",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stake_engine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stake_engine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stake_engine_http_request_duration_seconds",
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

		// Use the raw path for the label; the API surface is small and
		// fixed, so cardinality stays bounded.
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
