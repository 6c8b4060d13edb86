package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// errorStatus maps a service error to its HTTP status
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrProviderNotFound):
		return http.StatusNotFound
	case models.IsInvalidTransition(err), models.IsConflict(err),
		errors.Is(err, models.ErrCheckInFlight), errors.Is(err, models.ErrProviderExists),
		errors.Is(err, models.ErrIntakeSourceImmutable):
		return http.StatusConflict
	case errors.Is(err, models.ErrCheckNotInFlight):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrInvalidCheckType),
		errors.Is(err, models.ErrInvalidCheckStatus), errors.Is(err, models.ErrInvalidDecision),
		errors.Is(err, models.ErrCommentsRequired), errors.Is(err, models.ErrReviewerRequired),
		errors.Is(err, models.ErrMultiplePrimarySpecialties), errors.Is(err, models.ErrInvalidIntakeSource):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrDispatcherStopped), errors.Is(err, models.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Internal errors are logged and
// their message replaced so store details never reach the caller.
func respondError(c *gin.Context, logger *logging.SafeLogger, err error) {
	status := errorStatus(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("provider_id", c.Param("id")),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// parsePagination reads page and per_page with defaults and bounds
func parsePagination(c *gin.Context) (int, int, error) {
	page, perPage := 1, defaultPerPage
	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return 0, 0, errors.New("page must be a positive integer")
		}
		page = v
	}
	if raw := c.Query("per_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxPerPage {
			return 0, 0, errors.New("per_page must be between 1 and 100")
		}
		perPage = v
	}
	return page, perPage, nil
}
