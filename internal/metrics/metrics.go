package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Private registry so tests can scrape without touching the global default.
var registry = prometheus.NewRegistry()

func counter(name, help string) prometheus.Counter {
	return promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "orders",
		Name:      name,
		Help:      help,
	})
}

var (
	httpRequests = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "orders",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orders",
		Name:      "http_request_duration_seconds",
		Help:      "Latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	OrdersCreated       = counter("created_total", "Orders created (excluding idempotent replays)")
	OrdersPaid          = counter("paid_total", "Orders that reached the paid status")
	OrdersCanceled      = counter("canceled_total", "Orders canceled by users or payment failures")
	OutboxEventsSent    = counter("outbox_events_sent_total", "Outbox events processed successfully")
	OutboxEventsDead    = counter("outbox_events_dead_total", "Outbox events moved to the dead letter status")
	PaymentCircuitOpens = counter("payment_circuit_open_total", "Times the payment provider HTTP circuit opened")
)

// Handler serves the scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request counts and latency per matched route template.
// Probe endpoints are excluded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" { // no template matched (404)
			route = "<unmatched>"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Registry is exposed for tests.
func Registry() *prometheus.Registry { return registry }
