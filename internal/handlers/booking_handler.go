package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/middleware"
	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/internal/services"
)

// BookingSubmitter creates pending bookings from wizard drafts
type BookingSubmitter interface {
	Submit(ctx context.Context, draft *models.BookingDraft, idempotencyKey string) (*services.SubmitResult, error)
}

// BookingHandler handles booking submission HTTP requests
type BookingHandler struct {
	bookings BookingSubmitter
	logger   *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings BookingSubmitter, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var draft models.BookingDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.bookings.Submit(c.Request.Context(), &draft, middleware.IdempotencyKey(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":  true,
		"replayed": result.Replayed,
		"data":     gin.H{"booking": result.Booking},
	})
}
