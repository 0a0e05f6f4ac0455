package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/config"
	"github.com/staywell/booking-funnel/internal/models"
)

// BackendClient calls the reservation backend that owns bookings
type BackendClient struct {
	config *config.BackendConfig
	logger *logrus.Logger
	client *http.Client
}

// backendEnvelope is the response shape every backend endpoint uses
type backendEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Booking *models.Booking `json:"booking"`
	} `json:"data"`
}

// BackendStatusError is a non-2xx response from the reservation backend
type BackendStatusError struct {
	StatusCode int
	Message    string
}

func (e *BackendStatusError) Error() string {
	return fmt.Sprintf("reservation backend returned status %d: %s", e.StatusCode, e.Message)
}

// NewBackendClient creates a new reservation backend client
func NewBackendClient(cfg *config.BackendConfig, logger *logrus.Logger) *BackendClient {
	return &BackendClient{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CreateBooking POSTs a new pending booking
func (c *BackendClient) CreateBooking(ctx context.Context, payload *models.CreateBookingPayload) (*models.Booking, error) {
	booking, err := c.do(ctx, http.MethodPost, "/api/bookings", payload)
	if err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"reference_code": booking.ReferenceCode,
		"total_cents":    booking.TotalAmountCents,
	}).Info("Backend booking created")
	return booking, nil
}

// GetBooking fetches a booking by id
func (c *BackendClient) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	booking, err := c.do(ctx, http.MethodGet, "/api/bookings/"+strconv.FormatInt(bookingID, 10), nil)
	if err != nil {
		var statusErr *BackendStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return booking, nil
}

// PatchPayment records a verified payment on the booking
func (c *BackendClient) PatchPayment(ctx context.Context, bookingID int64, patch *models.BookingPaymentPatch) (*models.Booking, error) {
	path := "/api/bookings/" + strconv.FormatInt(bookingID, 10) + "/payment"
	booking, err := c.do(ctx, http.MethodPatch, path, patch)
	if err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"payment_status": booking.PaymentStatus,
		"payment_id":     patch.ProcessorPaymentID,
	}).Info("Backend booking payment updated")
	return booking, nil
}

func (c *BackendClient) do(ctx context.Context, method, path string, body interface{}) (*models.Booking, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Error("Failed to call reservation backend")
		return nil, fmt.Errorf("failed to call reservation backend: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope backendEnvelope
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := envelope.Message
		if message == "" {
			message = envelope.Error
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		c.logger.WithFields(logrus.Fields{
			"method":      method,
			"path":        path,
			"status_code": resp.StatusCode,
			"message":     message,
		}).Warn("Reservation backend returned error")
		return nil, &BackendStatusError{StatusCode: resp.StatusCode, Message: message}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if !envelope.Success || envelope.Data.Booking == nil {
		message := envelope.Message
		if message == "" {
			message = "response did not include a booking"
		}
		return nil, &BackendStatusError{StatusCode: resp.StatusCode, Message: message}
	}
	return envelope.Data.Booking, nil
}
