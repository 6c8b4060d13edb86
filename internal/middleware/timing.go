package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RequestTiming wraps the request in a span and records its duration
func RequestTiming() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set("request_start_time", start)

		ctx, span := otel.Tracer("http").Start(c.Request.Context(), "http.request")
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.url", c.Request.URL.String()),
			attribute.String("http.route", c.FullPath()),
			attribute.String("http.client_ip", c.ClientIP()),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int64("http.duration_ms", latency.Milliseconds()),
		)
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			span.SetAttributes(attribute.String("http.request_id", requestID))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		}

		// unmatched routes share one label
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.RequestDuration.WithLabelValues(route, c.Request.Method, statusLabel(status)).
			Observe(latency.Seconds())
	}
}
