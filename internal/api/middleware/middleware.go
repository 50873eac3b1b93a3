// Package middleware holds the gin middleware chain (C7), grounded on the
// teacher's internal/api/middleware: request-scoped logging context first,
// then Prometheus instrumentation, then CORS.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"payout-ledger/internal/config"
	"payout-ledger/internal/logging"
	"payout-ledger/internal/metrics"
)

// RequestID stamps every request with a correlation id (echoed back in
// the response and attached to every log line for that request) before
// any other middleware runs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = randomID()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// Prometheus records request count, duration and in-flight gauge for
// every request, the same three metrics the teacher's PrometheusMiddleware
// records.
func Prometheus() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPDuration.WithLabelValues(c.Request.Method, endpoint, status).Observe(duration.Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
	}
}

// AccessLog emits one structured log line per request after it completes.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Info("request handled", map[string]interface{}{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// CORS applies the configured cross-origin policy. Hand-rolled rather
// than via a router-agnostic CORS library: the teacher's own
// src/diplomat/middleware/cors.go does the same thing directly against
// gin's ResponseWriter, and there is no ecosystem dependency in the pack
// that does this more idiomatically for gin than gin's own header-setting
// idiom.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowOrigins := joinOrStar(cfg.AllowOrigins)
	allowMethods := joinOrDefault(cfg.AllowMethods, "GET,POST,PUT,DELETE,OPTIONS")
	allowHeaders := joinOrDefault(cfg.AllowHeaders, "Content-Type,Authorization,Idempotency-Key")

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigins)
		c.Writer.Header().Set("Access-Control-Allow-Methods", allowMethods)
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func joinOrStar(values []string) string {
	if len(values) == 0 {
		return "*"
	}
	out := values[0]
	for _, v := range values[1:] {
		out += "," + v
	}
	return out
}

func joinOrDefault(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	out := values[0]
	for _, v := range values[1:] {
		out += "," + v
	}
	return out
}

func randomID() string {
	return time.Now().UTC().Format("20060102T150405.000000000")
}
