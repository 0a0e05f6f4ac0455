package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/internal/services"
)

// ReceiptBuilder loads and renders booking confirmations
type ReceiptBuilder interface {
	Load(ctx context.Context, bookingID int64, payment *models.PaymentDetails) (*services.Receipt, error)
	RenderPDF(r *services.Receipt) ([]byte, string, error)
}

// PaymentDetailsSource looks up what the checkout recorded for a booking
type PaymentDetailsSource interface {
	PaymentDetailsFor(ctx context.Context, bookingID int64, orderID string) (*models.PaymentDetails, error)
}

// ConfirmationHandler serves the read-only confirmation screen and its PDF
type ConfirmationHandler struct {
	receipts ReceiptBuilder
	payments PaymentDetailsSource
	logger   *logrus.Logger
}

// NewConfirmationHandler creates a new confirmation handler
func NewConfirmationHandler(receipts ReceiptBuilder, payments PaymentDetailsSource, logger *logrus.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{receipts: receipts, payments: payments, logger: logger}
}

// GetConfirmation handles GET /api/bookings/:id/confirmation?ref=<referenceCode>
func (h *ConfirmationHandler) GetConfirmation(c *gin.Context) {
	receipt, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"receipt": receipt}})
}

// DownloadConfirmation handles GET /api/bookings/:id/confirmation.pdf?ref=<referenceCode>
func (h *ConfirmationHandler) DownloadConfirmation(c *gin.Context) {
	receipt, ok := h.load(c)
	if !ok {
		return
	}

	pdf, filename, err := h.receipts.RenderPDF(receipt)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *ConfirmationHandler) load(c *gin.Context) (*services.Receipt, bool) {
	bookingID, ok := parseBookingID(c)
	if !ok {
		return nil, false
	}
	// ids are sequential; the reference code is what proves the caller owns the booking
	ref := c.Query("ref")
	if ref == "" {
		respondError(c, h.logger, models.ErrNotFound)
		return nil, false
	}

	payment, err := h.paymentDetails(c, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}

	receipt, err := h.receipts.Load(c.Request.Context(), bookingID, payment)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(ref), []byte(receipt.ReferenceCode)) != 1 {
		h.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"ip":         c.ClientIP(),
		}).Warn("Confirmation requested with a wrong reference code")
		respondError(c, h.logger, models.ErrNotFound)
		return nil, false
	}
	return receipt, true
}

// paymentDetails resolves the optional order_id/payment_id query. An unknown
// order falls back to the booking's own payment status.
func (h *ConfirmationHandler) paymentDetails(c *gin.Context, bookingID int64) (*models.PaymentDetails, error) {
	orderID := c.Query("order_id")
	if orderID == "" || h.payments == nil {
		return nil, nil
	}

	details, err := h.payments.PaymentDetailsFor(c.Request.Context(), bookingID, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if paymentID := c.Query("payment_id"); paymentID != "" && details.PaymentID != "" && paymentID != details.PaymentID {
		h.logger.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"order_id":   orderID,
		}).Warn("Confirmation requested with a payment id that does not match the session")
		return nil, nil
	}
	return details, nil
}
