package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
)

// AuditReader reads the payment audit trail
type AuditReader interface {
	GetByOrderID(ctx context.Context, orderID string) ([]*models.PaymentAudit, error)
	GetByBookingID(ctx context.Context, bookingID int64) ([]*models.PaymentAudit, error)
	GetAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error)
}

// AuditHandler exposes the payment audit trail to operators
type AuditHandler struct {
	audits AuditReader
	logger *logrus.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audits AuditReader, logger *logrus.Logger) *AuditHandler {
	return &AuditHandler{audits: audits, logger: logger}
}

// ListPaymentAudits handles GET /api/admin/payment-audits?order_id=|booking_id=
func (h *AuditHandler) ListPaymentAudits(c *gin.Context) {
	var (
		audits []*models.PaymentAudit
		err    error
	)

	switch {
	case c.Query("order_id") != "":
		audits, err = h.audits.GetByOrderID(c.Request.Context(), c.Query("order_id"))
	case c.Query("booking_id") != "":
		id, perr := strconv.ParseInt(c.Query("booking_id"), 10, 64)
		if perr != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid_booking_id", Message: "booking_id must be a positive integer"})
			return
		}
		audits, err = h.audits.GetByBookingID(c.Request.Context(), id)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid_request", Message: "order_id or booking_id is required"})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(audits), "data": audits})
}

// ListAmountMismatches handles GET /api/admin/payment-audits/amount-mismatches
func (h *AuditHandler) ListAmountMismatches(c *gin.Context) {
	audits, err := h.audits.GetAmountMismatches(c.Request.Context(), queryLimit(c, 50, 200))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(audits), "data": audits})
}
