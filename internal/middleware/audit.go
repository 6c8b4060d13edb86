package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"go.uber.org/zap"
)

// AuditLogger records one audit entry; utils.AuditWorker implements it
type AuditLogger interface {
	Log(ctx context.Context, action, resource, resourceID string, oldValue, newValue interface{}, metadata map[string]string) error
}

// AuditMiddleware records every successful write request.
// Request bodies carry SSNs and are never copied into the entry.
func AuditMiddleware(auditor AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if auditor == nil || !isWrite(method) {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/v1/health") || strings.HasPrefix(path, "/metrics") {
			c.Next()
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		metadata := map[string]string{
			"endpoint":        path,
			"route":           c.FullPath(),
			"method":          method,
			"response_status": strconv.Itoa(status),
		}
		if c.Request.URL.RawQuery != "" {
			metadata["query_params"] = c.Request.URL.RawQuery
		}
		if check := c.Param("check"); check != "" {
			metadata["check"] = check
		}

		err := auditor.Log(c.Request.Context(), auditAction(method), auditResource(path), c.Param("id"), nil, nil, metadata)
		if err != nil {
			observability.Logger().Warn("failed to log audit event",
				zap.Error(err),
				zap.String("endpoint", path),
				zap.String("method", method))
		}
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func auditAction(method string) string {
	switch method {
	case http.MethodPost:
		return utils.AuditActionCreate
	case http.MethodDelete:
		return utils.AuditActionCancel
	default:
		return utils.AuditActionUpdate
	}
}

func auditResource(path string) string {
	path = strings.TrimPrefix(path, "/v1/")
	switch {
	case strings.HasPrefix(path, "intake/"):
		return utils.AuditResourceIntakeFile
	case strings.HasPrefix(path, "providers/") && strings.Contains(path, "/psv"):
		return utils.AuditResourceVerification
	case strings.HasPrefix(path, "providers/") && strings.HasSuffix(path, "/decision"):
		return utils.AuditResourceDecision
	case strings.HasPrefix(path, "providers"):
		return utils.AuditResourceProvider
	}
	if i := strings.Index(path, "/"); i > 0 {
		return path[:i]
	}
	if path == "" {
		return "unknown"
	}
	return path
}
