// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aura_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aura_http_active_requests",
		Help: "In-flight HTTP requests",
	})

	// ReferenceResolutions counts create-or-lookup outcomes:
	// created, found, race (lost an insert race and fell back to lookup), invalid, error.
	ReferenceResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_reference_resolutions_total",
			Help: "Reference create-or-lookup outcomes by kind",
		},
		[]string{"kind", "outcome"},
	)

	AutocompleteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_autocomplete_requests_total",
			Help: "Tag autocomplete requests by result (hit, empty, short)",
		},
		[]string{"result"},
	)

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aura_rate_limited_total",
		Help: "Requests rejected by the per-user rate limiter",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aura_ws_connections",
		Help: "Open websocket connections",
	})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aura_events_published_total",
			Help: "Events pushed to websocket subscribers by type",
		},
		[]string{"type"},
	)
)

func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordResolution(kind, outcome string) {
	ReferenceResolutions.WithLabelValues(kind, outcome).Inc()
}

// Middleware records request counts and latency keyed by the matched route
// template so ids do not explode label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		APIActiveRequests.Inc()
		defer APIActiveRequests.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordAPIRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
