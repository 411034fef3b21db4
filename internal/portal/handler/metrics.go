package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	psyncRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psync_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	psyncRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "psync_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	psyncUploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psync_version_uploads_total",
		Help: "Total protocol version uploads registered.",
	})

	psyncPromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psync_version_promotions_total",
		Help: "Total protocol version promotions committed.",
	})

	psyncDelegationsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psync_delegations_issued_total",
		Help: "Total delegations issued.",
	})

	psyncWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psync_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		psyncRequestsTotal.WithLabelValues(method, path, status).Inc()
		psyncRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordVersionUpload records a registered upload.
func RecordVersionUpload() {
	psyncUploadsTotal.Inc()
}

// RecordPromotion records a committed promotion.
func RecordPromotion() {
	psyncPromotionsTotal.Inc()
}

// RecordDelegationIssued records an issued delegation.
func RecordDelegationIssued() {
	psyncDelegationsIssuedTotal.Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	if success {
		psyncWebhookDeliveriesTotal.WithLabelValues("success").Inc()
	} else {
		psyncWebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	}
}
