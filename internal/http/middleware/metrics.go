// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the Prometheus HTTP instrumentation. Labels are kept to
// method, registered route, and status so series cardinality stays bounded:
// the route label uses c.FullPath() (e.g. /api/v1/summaries/:id/tags) and only
// falls back to the raw URL path for unmatched requests.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	// Status is omitted from the histograms to keep their cardinality lower.
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_inflight",
		Help: "Current number of in-flight HTTP requests.",
	})

	httpRespBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_response_size_bytes",
		Help: "Size of HTTP responses in bytes.",
		// Tuned for JSON payloads: summaries are a few KiB, listings larger.
		Buckets: prometheus.ExponentialBuckets(256, 4, 10),
	}, []string{"method", "path"})
)

// Metrics returns a Gin middleware instrumenting every request: a request
// counter by (method, path, status), a latency histogram, a response size
// histogram, and an in-flight gauge held high for the handler's duration.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespBytes.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
