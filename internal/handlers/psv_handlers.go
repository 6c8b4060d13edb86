package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DispatchResponse reports the checks queued for a provider
type DispatchResponse struct {
	Provider   *models.Provider   `json:"provider"`
	Dispatched []models.CheckType `json:"dispatched"`
}

// VerificationResultRequest is the body posted by a primary source with a check outcome
type VerificationResultRequest struct {
	Status    models.CheckStatus `json:"status" binding:"required" example:"verified"`
	Source    string             `json:"source" example:"state-board"`
	Notes     string             `json:"notes"`
	CheckedAt *time.Time         `json:"checkedAt"`
}

// PSVHandlers serves primary-source verification
type PSVHandlers struct {
	logger  *logging.SafeLogger
	service *services.CredentialingService
}

// NewPSVHandlers creates the verification handlers
func NewPSVHandlers(logger *logging.SafeLogger, service *services.CredentialingService) *PSVHandlers {
	return &PSVHandlers{logger: logger.Named("psv"), service: service}
}

// DispatchAll godoc
// @Summary Start verification of every check
// @Description Queues every check that is not yet verified. Checks already in flight are left alone.
// @Tags psv
// @Produce json
// @Param id path string true "Provider ID"
// @Success 202 {object} DispatchResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse "Dispatcher stopped or queue full"
// @Security ApiKeyAuth
// @Router /providers/{id}/psv [post]
func (h *PSVHandlers) DispatchAll(c *gin.Context) {
	ctx, span := otel.Tracer("").Start(c.Request.Context(), "DispatchAll")
	defer span.End()

	p, checks, err := h.service.DispatchAll(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.Int("psv.dispatched", len(checks)))
	c.JSON(http.StatusAccepted, DispatchResponse{Provider: p, Dispatched: checks})
}

// DispatchCheck godoc
// @Summary Start one verification check
// @Tags psv
// @Produce json
// @Param id path string true "Provider ID"
// @Param check path string true "licenses, deaNpi, education, malpractice, workHistory or sanctions"
// @Success 202 {object} DispatchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /providers/{id}/psv/{check} [post]
func (h *PSVHandlers) DispatchCheck(c *gin.Context) {
	check := models.CheckType(c.Param("check"))
	// the result is written back by the dispatcher sink
	p, _, err := h.service.DispatchCheck(c.Request.Context(), c.Param("id"), check)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, DispatchResponse{Provider: p, Dispatched: []models.CheckType{check}})
}

// CancelCheck godoc
// @Summary Cancel an in-flight check
// @Description The verification record stays pending.
// @Tags psv
// @Param id path string true "Provider ID"
// @Param check path string true "Check type"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Provider not found or check not in flight"
// @Security ApiKeyAuth
// @Router /providers/{id}/psv/{check} [delete]
func (h *PSVHandlers) CancelCheck(c *gin.Context) {
	if err := h.service.CancelCheck(c.Request.Context(), c.Param("id"), models.CheckType(c.Param("check"))); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordResult godoc
// @Summary Record a verification outcome
// @Description Callback for primary sources. Only verified and failed are accepted.
// @Tags psv
// @Accept json
// @Produce json
// @Param id path string true "Provider ID"
// @Param check path string true "Check type"
// @Param result body VerificationResultRequest true "Outcome"
// @Success 200 {object} models.Provider
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Provider is not in verification"
// @Security ApiKeyAuth
// @Router /providers/{id}/psv/{check}/result [post]
func (h *PSVHandlers) RecordResult(c *gin.Context) {
	var req VerificationResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	record := models.VerificationStatus{
		Status:      req.Status,
		LastChecked: req.CheckedAt,
		Source:      req.Source,
		Notes:       req.Notes,
	}
	id, check := c.Param("id"), models.CheckType(c.Param("check"))
	p, err := h.service.RecordVerification(c.Request.Context(), id, check, record)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("verification recorded",
		zap.String("provider_id", id),
		zap.String("check", string(check)),
		zap.String("outcome", string(req.Status)),
		zap.String("psv_status", string(p.PSVStatus.OverallStatus)))
	c.JSON(http.StatusOK, p)
}

// PSVReport godoc
// @Summary Verification progress report
// @Tags psv
// @Produce json
// @Param status query string false "Lifecycle status"
// @Param intake_source query string false "Intake source"
// @Param psv_status query string false "Aggregate verification status"
// @Param search query string false "Matches name, NPI or email"
// @Success 200 {object} models.PSVReport
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /psv/reports [get]
func (h *PSVHandlers) PSVReport(c *gin.Context) {
	filter, err := parseProviderFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	report, err := h.service.PSVReport(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
