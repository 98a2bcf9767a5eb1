package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricescout/models"
)

// errorDetail classifies err and returns the HTTP status and body detail.
func errorDetail(err error) (int, *models.ErrorDetail) {
	se := models.AsScrapeError(err)
	return mapErrorToStatus(se), se.ToDetail()
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput, models.ErrCodeInvalidDomain:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeProductNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeProductExists:
		return http.StatusConflict // 409
	case models.ErrCodeNameNotFound:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeSessionClosed, models.ErrCodeBrowserStart:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}

func invalidInput(msg string) *models.ErrorDetail {
	return &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: msg}
}

// productID parses the :id path parameter.
func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
