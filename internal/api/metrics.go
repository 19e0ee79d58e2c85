package api

import (
	"strconv"
	"sync"
	"time"

	"stock-insight-backend/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"path", "method", "status"},
	)

	scansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "watchlist_scans_total",
			Help: "Total number of completed watchlist scan cycles",
		},
	)

	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "watchlist_scan_duration_seconds",
			Help:    "Watchlist scan cycle duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)

	scanResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlist_scan_results_total",
			Help: "Per-symbol scan results by signal direction",
		},
		[]string{"direction"},
	)

	busErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_errors_total",
			Help: "Errors published on the event bus by source",
		},
		[]string{"source"},
	)

	registerMetricsOnce sync.Once
)

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			scansTotal,
			scanDuration,
			scanResultsTotal,
			busErrorsTotal,
		)
	})
}

// metricsMiddleware records request counts and latency. Labels use the
// route template, not the raw URL, to keep cardinality bounded.
func metricsMiddleware() gin.HandlerFunc {
	registerMetrics()

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(path, c.Request.Method, status).Inc()
		httpRequestDuration.WithLabelValues(path, c.Request.Method, status).Observe(time.Since(start).Seconds())
	}
}

// observeScanMetrics translates scan lifecycle events into collectors
func observeScanMetrics(event events.Event) {
	switch event.Type {
	case events.EventScanCompleted:
		scansTotal.Inc()
		if ms, ok := event.Data["elapsed_ms"].(int64); ok {
			scanDuration.Observe(float64(ms) / 1000)
		}
	case events.EventScanResult:
		if dir, ok := event.Data["direction"].(string); ok {
			scanResultsTotal.WithLabelValues(dir).Inc()
		}
	case events.EventError:
		if src, ok := event.Data["source"].(string); ok {
			busErrorsTotal.WithLabelValues(src).Inc()
		}
	}
}
