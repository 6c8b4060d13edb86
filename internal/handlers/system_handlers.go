package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/services"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"go.uber.org/zap"
)

const healthCheckTimeout = 3 * time.Second

// HealthResponse reports the state of each dependency
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// SystemHandlers serves health and dashboard projections
type SystemHandlers struct {
	logger  *logging.SafeLogger
	service *services.CredentialingService
	checks  map[string]services.HealthCheck
}

// NewSystemHandlers creates the handlers; checks are keyed by dependency name
func NewSystemHandlers(logger *logging.SafeLogger, service *services.CredentialingService, checks map[string]services.HealthCheck) *SystemHandlers {
	if checks == nil {
		checks = map[string]services.HealthCheck{}
	}
	return &SystemHandlers{logger: logger.Named("system"), service: service, checks: checks}
}

// HealthCheck godoc
// @Summary Dependency health
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *SystemHandlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Services:  map[string]string{},
	}

	names := make([]string, 0, len(h.checks)+1)
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	record := func(name string, err error) {
		if err != nil {
			health.Status = "unhealthy"
			health.Services[name] = "unhealthy"
			h.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
			return
		}
		health.Services[name] = "healthy"
	}

	_, span := utils.TraceExternalService(ctx, "provider_store", "ping")
	record("store", h.service.Ping(ctx))
	span.End()

	for _, name := range names {
		_, span := utils.TraceExternalService(ctx, name, "health")
		record(name, h.checks[name](ctx))
		span.End()
	}

	if health.Status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}

// DashboardStats godoc
// @Summary Dashboard counters
// @Description Counts per lifecycle status, per aggregate verification status and per intake source.
// @Tags dashboard
// @Produce json
// @Success 200 {object} models.DashboardStats
// @Failure 500 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /dashboard/stats [get]
func (h *SystemHandlers) DashboardStats(c *gin.Context) {
	stats, err := h.service.DashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
