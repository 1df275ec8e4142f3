// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// DocumentsSubmitted counts documents created, by document type
	DocumentsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_documents_submitted_total",
			Help: "KYC documents submitted.",
		},
		[]string{"document_type"},
	)

	// Decisions counts admin verify/reject actions
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_decisions_total",
			Help: "Admin decisions on KYC documents.",
		},
		[]string{"decision"},
	)

	// StatusQueries counts computed verification summaries, by overall status
	StatusQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_status_queries_total",
			Help: "Verification status computations by resulting status.",
		},
		[]string{"status"},
	)

	// FileCleanups counts deferred file deletions, by result
	FileCleanups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyc_file_cleanup_total",
			Help: "Deferred evidence file deletions by result.",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			DocumentsSubmitted,
			Decisions,
			StatusQueries,
			FileCleanups,
		)
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request count and latency per route template
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
