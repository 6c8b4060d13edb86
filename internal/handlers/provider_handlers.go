package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/services"
	"github.com/prefeitura-rio/app-credentialing/internal/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxUploadSize bounds a roster upload
const maxUploadSize = 10 << 20

// ProviderListResponse is a page of providers
type ProviderListResponse struct {
	Data    []*models.Provider `json:"data"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"perPage"`
}

// ProviderHandlers serves provider intake, editing and lookup
type ProviderHandlers struct {
	logger  *logging.SafeLogger
	service *services.CredentialingService
	intake  *services.IntakeService
}

// NewProviderHandlers creates the provider handlers
func NewProviderHandlers(logger *logging.SafeLogger, service *services.CredentialingService, intake *services.IntakeService) *ProviderHandlers {
	return &ProviderHandlers{logger: logger.Named("providers"), service: service, intake: intake}
}

// parseProviderFilter reads the listing filters shared by providers and reports
func parseProviderFilter(c *gin.Context) (services.ProviderFilter, error) {
	filter := services.ProviderFilter{
		Status:       models.ProviderStatus(c.Query("status")),
		IntakeSource: models.IntakeSource(c.Query("intake_source")),
		PSVStatus:    models.OverallPSVStatus(c.Query("psv_status")),
		Search:       strings.TrimSpace(c.Query("search")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return filter, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, filter.Status)
	}
	if filter.IntakeSource != "" && !filter.IntakeSource.IsValid() {
		return filter, fmt.Errorf("%w: unknown intake_source %q", models.ErrInvalidInput, filter.IntakeSource)
	}
	if filter.PSVStatus != "" {
		known := false
		for _, s := range models.AllOverallPSVStatuses {
			known = known || s == filter.PSVStatus
		}
		if !known {
			return filter, fmt.Errorf("%w: unknown psv_status %q", models.ErrInvalidInput, filter.PSVStatus)
		}
	}
	return filter, nil
}

// ListProviders godoc
// @Summary List providers
// @Description Returns a page of providers matching the optional filters.
// @Tags providers
// @Produce json
// @Param status query string false "Lifecycle status"
// @Param intake_source query string false "manual, file-upload or api"
// @Param psv_status query string false "not-started, in-progress, completed or issues-found"
// @Param search query string false "Matches name, NPI or email"
// @Param page query int false "Page number (default 1)" minimum(1)
// @Param per_page query int false "Items per page (default 20, max 100)" minimum(1) maximum(100)
// @Success 200 {object} ProviderListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /providers [get]
func (h *ProviderHandlers) ListProviders(c *gin.Context) {
	ctx, span := otel.Tracer("").Start(c.Request.Context(), "ListProviders")
	defer span.End()

	filter, err := parseProviderFilter(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	page, perPage, err := parsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	filter.Page, filter.PerPage = page, perPage

	providers, total, err := h.service.ListProviders(ctx, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	span.SetAttributes(attribute.Int64("providers.total", total))

	c.JSON(http.StatusOK, ProviderListResponse{Data: providers, Total: total, Page: page, PerPage: perPage})
}

// CreateProvider godoc
// @Summary Submit a provider
// @Description Manual or api intake of one provider. The provider is validated immediately and returned at Submitted or ValidationFailed.
// @Tags providers
// @Accept json
// @Produce json
// @Param provider body models.ProviderInput true "Provider details"
// @Success 201 {object} models.Provider
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /providers [post]
func (h *ProviderHandlers) CreateProvider(c *gin.Context) {
	ctx, span := otel.Tracer("").Start(c.Request.Context(), "CreateProvider")
	defer span.End()

	_, parseSpan := utils.TraceInputParsing(ctx, "provider_input")
	var input models.ProviderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RecordErrorInSpan(parseSpan, err, nil)
		parseSpan.End()
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}
	parseSpan.End()

	p, err := h.intake.Ingest(ctx, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	span.SetAttributes(attribute.String("provider.id", p.ID), attribute.String("provider.status", string(p.Status)))
	h.logger.Info("provider submitted",
		zap.String("provider_id", p.ID),
		zap.String("npi", observability.MaskNPI(p.EffectiveNPI())),
		zap.String("status", string(p.Status)))
	c.JSON(http.StatusCreated, p)
}

// GetProvider godoc
// @Summary Get a provider
// @Tags providers
// @Produce json
// @Param id path string true "Provider ID"
// @Success 200 {object} models.Provider
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /providers/{id} [get]
func (h *ProviderHandlers) GetProvider(c *gin.Context) {
	p, err := h.service.GetProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProvider godoc
// @Summary Edit provider details
// @Description Allowed while the provider is New or ValidationFailed. A ValidationFailed provider is revalidated after the edit.
// @Tags providers
// @Accept json
// @Produce json
// @Param id path string true "Provider ID"
// @Param provider body models.ProviderInput true "Provider details"
// @Success 200 {object} models.Provider
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Provider is past the editable states"
// @Security ApiKeyAuth
// @Router /providers/{id} [put]
func (h *ProviderHandlers) UpdateProvider(c *gin.Context) {
	var input models.ProviderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	p, err := h.service.UpdateProvider(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ValidateProvider godoc
// @Summary Re-run validation
// @Tags providers
// @Produce json
// @Param id path string true "Provider ID"
// @Success 200 {object} models.Provider
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /providers/{id}/validate [post]
func (h *ProviderHandlers) ValidateProvider(c *gin.Context) {
	p, err := h.service.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UploadRoster godoc
// @Summary Upload a provider roster
// @Description CSV with a header row. Each valid row becomes a provider; rejected rows are listed with their line number. Excel files are refused.
// @Tags intake
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Roster CSV"
// @Success 200 {object} models.IntakeReport
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 415 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /intake/files [post]
func (h *ProviderHandlers) UploadRoster(c *gin.Context) {
	ctx, span := otel.Tracer("").Start(c.Request.Context(), "UploadRoster")
	defer span.End()

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}
	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file exceeds 10MB"})
		return
	}
	if err := services.CheckUploadFileName(header.Filename); err != nil {
		respondError(c, h.logger, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, h.logger, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	span.SetAttributes(attribute.String("upload.filename", header.Filename), attribute.Int64("upload.size", header.Size))
	report, err := h.intake.IngestCSV(ctx, file)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("roster uploaded",
		zap.String("filename", header.Filename),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected))
	c.JSON(http.StatusOK, report)
}
