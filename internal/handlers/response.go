package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/internal/services"
	"github.com/staywell/booking-funnel/internal/utils"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Success bool                `json:"success"`
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Fields  []models.FieldError `json:"fields,omitempty"`
}

// respondError maps err onto its HTTP status and writes the error body
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Internal server error"

	var validationErr *models.ValidationError
	var reconciliationErr *models.BackendReconciliationError
	var configErr *models.GatewayConfigError

	switch {
	case errors.Is(err, models.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, models.ErrSubmissionInProgress):
		status, code, message = http.StatusConflict, "submission_in_progress", "This booking is already being submitted"
	case errors.As(err, &configErr):
		// which credential is missing is for operators only; it stays in the log
		status, code = configErr.HTTPStatus(), configErr.Code()
		message = "Online payment is temporarily unavailable. Please try again later"
	case errors.As(err, &reconciliationErr):
		status, code = reconciliationErr.HTTPStatus(), reconciliationErr.Code()
		message = "Payment was received but the booking could not be updated. Please contact support with payment ID " + reconciliationErr.PaymentID
	default:
		if apiErr, ok := models.AsAPIError(err); ok {
			status, code, message = apiErr.HTTPStatus(), apiErr.Code(), apiErr.Error()
		}
	}

	body := ErrorResponse{Success: false, Error: code, Message: message}
	if errors.As(err, &validationErr) {
		body.Fields = validationErr.Fields
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"status": status,
		"code":   code,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.JSON(status, body)
}

// badRequest answers a body that could not be decoded
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   "invalid_request",
		Message: "Invalid request body: " + err.Error(),
	})
}

func requestMeta(c *gin.Context) *services.RequestMeta {
	return &services.RequestMeta{
		IPAddress: utils.GetRealIP(c),
		UserAgent: utils.GetUserAgent(c),
	}
}

func parseBookingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "invalid_booking_id",
			Message: "Booking ID must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
