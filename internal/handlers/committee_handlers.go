package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/middleware"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/services"
	"go.uber.org/zap"
)

// DecisionLogResponse is a provider's committee history
type DecisionLogResponse struct {
	ProviderID string                  `json:"providerId"`
	Decisions  []models.DecisionRecord `json:"decisions"`
}

// CommitteeHandlers serves the credentialing committee
type CommitteeHandlers struct {
	logger  *logging.SafeLogger
	service *services.CredentialingService
}

// NewCommitteeHandlers creates the committee handlers
func NewCommitteeHandlers(logger *logging.SafeLogger, service *services.CredentialingService) *CommitteeHandlers {
	return &CommitteeHandlers{logger: logger.Named("committee"), service: service}
}

// SubmitDecision godoc
// @Summary Submit a committee decision
// @Description approve, reject or request-info. reject and request-info need comments. The reviewer is taken from the token.
// @Tags committee
// @Accept json
// @Produce json
// @Param id path string true "Provider ID"
// @Param decision body models.CommitteeDecisionRequest true "Decision"
// @Success 200 {object} models.Provider
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Reviewer or admin role required"
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Provider is not awaiting committee"
// @Security ApiKeyAuth
// @Router /providers/{id}/decision [post]
func (h *CommitteeHandlers) SubmitDecision(c *gin.Context) {
	reviewer, err := middleware.ReviewerFrom(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Reviewer identity not found"})
		return
	}

	var req models.CommitteeDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	p, err := h.service.SubmitDecision(c.Request.Context(), services.CommitteeDecision{
		ProviderID: c.Param("id"),
		Decision:   req.Decision,
		Comments:   req.Comments,
		Reviewer:   reviewer,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("committee decision recorded",
		zap.String("provider_id", p.ID),
		zap.String("decision", string(req.Decision)),
		zap.String("reviewer", reviewer),
		zap.String("status", string(p.Status)))
	c.JSON(http.StatusOK, p)
}

// GetDecisions godoc
// @Summary Committee decision history
// @Tags committee
// @Produce json
// @Param id path string true "Provider ID"
// @Success 200 {object} DecisionLogResponse
// @Failure 404 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /providers/{id}/decisions [get]
func (h *CommitteeHandlers) GetDecisions(c *gin.Context) {
	id := c.Param("id")
	decisions, err := h.service.Decisions(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if decisions == nil {
		decisions = []models.DecisionRecord{}
	}
	c.JSON(http.StatusOK, DecisionLogResponse{ProviderID: id, Decisions: decisions})
}

// Queue godoc
// @Summary Providers awaiting committee review
// @Tags committee
// @Produce json
// @Param page query int false "Page number (default 1)" minimum(1)
// @Param per_page query int false "Items per page (default 20, max 100)" minimum(1) maximum(100)
// @Success 200 {object} ProviderListResponse
// @Failure 400 {object} ErrorResponse
// @Security ApiKeyAuth
// @Router /committee/queue [get]
func (h *CommitteeHandlers) Queue(c *gin.Context) {
	page, perPage, err := parsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	providers, total, err := h.service.CommitteeQueue(c.Request.Context(), page, perPage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ProviderListResponse{Data: providers, Total: total, Page: page, PerPage: perPage})
}
