package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/internal/services"
)

// PaymentFlow is the server half of the hosted checkout
type PaymentFlow interface {
	KeyID() string
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest, meta *services.RequestMeta) (*models.PaymentOrder, error)
	VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest, meta *services.RequestMeta) (*models.VerifyPaymentResponse, error)
	MarkDismissed(ctx context.Context, orderID string, meta *services.RequestMeta) error
}

// RazorpayHandler handles the create-order, verify-payment and checkout-dismissed endpoints
type RazorpayHandler struct {
	payments PaymentFlow
	logger   *logrus.Logger
}

// NewRazorpayHandler creates a new Razorpay handler
func NewRazorpayHandler(payments PaymentFlow, logger *logrus.Logger) *RazorpayHandler {
	return &RazorpayHandler{payments: payments, logger: logger}
}

// CreateOrder handles POST /api/razorpay/create-order
func (h *RazorpayHandler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.payments.CreateOrder(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, models.CreateOrderResponse{
		Success: true,
		Order:   order,
		KeyID:   h.payments.KeyID(),
	})
}

// VerifyPayment handles POST /api/razorpay/verify-payment
func (h *RazorpayHandler) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.payments.VerifyPayment(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		var recErr *models.BackendReconciliationError
		if errors.As(err, &recErr) {
			h.logger.WithFields(logrus.Fields{
				"booking_id": recErr.BookingID,
				"order_id":   recErr.OrderID,
				"payment_id": recErr.PaymentID,
			}).Error("Payment captured but not recorded; queued for reconciliation")
			c.JSON(recErr.HTTPStatus(), models.VerifyPaymentResponse{
				Success:   false,
				Message:   "Payment was received but the booking could not be updated. Please contact support with your payment ID.",
				Error:     recErr.Code(),
				OrderID:   recErr.OrderID,
				PaymentID: recErr.PaymentID,
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CheckoutDismissed handles POST /api/razorpay/checkout-dismissed
func (h *RazorpayHandler) CheckoutDismissed(c *gin.Context) {
	var req models.CheckoutDismissedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.payments.MarkDismissed(c.Request.Context(), req.RazorpayOrderID, requestMeta(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
