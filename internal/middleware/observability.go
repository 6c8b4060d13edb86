package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"go.uber.org/zap"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// RequestLogger logs request information
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString(RequestIDKey)),
		}
		if reviewer := c.GetString(ReviewerKey); reviewer != "" {
			fields = append(fields, zap.String("reviewer", reviewer))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			observability.Logger().Error("request failed", fields...)
		case status >= 400:
			observability.Logger().Warn("request rejected", fields...)
		default:
			observability.Logger().Info("request completed", fields...)
		}
	}
}

// RequestTracker tracks active connections
func RequestTracker() gin.HandlerFunc {
	return func(c *gin.Context) {
		observability.ActiveConnections.Inc()
		defer observability.ActiveConnections.Dec()
		c.Next()
	}
}

// RequestID adds a unique request ID to the context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// AuditContext copies the caller identity into the request context so the
// services can attribute audit entries without depending on gin.
// It must run after AuthMiddleware to pick up the reviewer.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.WithAuditContext(c.Request.Context(), utils.GetAuditContextFromGin(c))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}
