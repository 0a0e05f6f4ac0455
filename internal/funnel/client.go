// Package funnel drives the booking wizard and hosted checkout against the booking API.
package funnel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
)

// ServerError is a non-2xx answer from the booking API that has no more specific type
type ServerError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *ServerError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("booking api %d %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("booking api %d: %s", e.StatusCode, e.Message)
}

func (e *ServerError) HTTPStatus() int { return e.StatusCode }
func (e *ServerError) Code() string    { return e.ErrorCode }

// envelope covers every response shape the booking API returns
type envelope struct {
	Success   bool                 `json:"success"`
	Message   string               `json:"message"`
	Error     string               `json:"error"`
	Fields    []models.FieldError  `json:"fields"`
	Replayed  bool                 `json:"replayed"`
	Order     *models.PaymentOrder `json:"order"`
	KeyID     string               `json:"keyId"`
	OrderID   string               `json:"orderId"`
	PaymentID string               `json:"paymentId"`
	Booking   *models.Booking      `json:"booking"`
	Data      struct {
		Booking *models.Booking `json:"booking"`
	} `json:"data"`
}

// Client calls the booking API on behalf of the wizard
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	now        func() time.Time
}

// NewClient creates a booking API client
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitBooking validates the draft and creates a pending booking. An invalid
// draft is never sent.
func (c *Client) SubmitBooking(ctx context.Context, draft *models.BookingDraft, idempotencyKey string) (*models.Booking, error) {
	if err := models.ValidateDraft(draft, c.now()); err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	status, env, err := c.post(ctx, "/api/bookings", draft, headers)
	if err != nil {
		return nil, err
	}
	if status >= 300 || !env.Success {
		if status == http.StatusUnprocessableEntity && len(env.Fields) > 0 {
			return nil, &models.ValidationError{Fields: env.Fields}
		}
		return nil, &models.BookingCreationError{StatusCode: status, Message: env.message()}
	}
	if env.Data.Booking == nil {
		return nil, &models.BookingCreationError{StatusCode: status, Message: "response did not include a booking"}
	}

	c.logger.WithFields(logrus.Fields{
		"booking_id":        env.Data.Booking.ID,
		"booking_reference": env.Data.Booking.ReferenceCode,
		"replayed":          env.Replayed,
	}).Info("Booking submitted")
	return env.Data.Booking, nil
}

// CreateOrder opens a gateway order for the booking. Amount, currency and receipt
// always come from the booking the backend returned.
func (c *Client) CreateOrder(ctx context.Context, booking *models.Booking) (*models.PaymentOrder, string, error) {
	req := &models.CreateOrderRequest{
		Amount:   booking.TotalAmountCents,
		Currency: booking.Currency,
		Receipt:  booking.ReferenceCode,
		Notes: map[string]string{
			"booking_id":        strconv.FormatInt(booking.ID, 10),
			"booking_reference": booking.ReferenceCode,
		},
	}

	status, env, err := c.post(ctx, "/api/razorpay/create-order", req, nil)
	if err != nil {
		return nil, "", err
	}
	if status >= 300 || !env.Success || env.Order == nil {
		return nil, "", env.asError(status)
	}
	return env.Order, env.KeyID, nil
}

// VerifyPayment forwards the checkout callback for server-side signature verification
func (c *Client) VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	status, env, err := c.post(ctx, "/api/razorpay/verify-payment", req, nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 || !env.Success {
		switch env.Error {
		case "signature_mismatch":
			return nil, &models.SignatureMismatchError{OrderID: req.RazorpayOrderID, PaymentID: req.RazorpayPaymentID}
		case "payment_verified_not_recorded":
			return nil, &models.BackendReconciliationError{
				BookingID: req.BookingID,
				OrderID:   req.RazorpayOrderID,
				PaymentID: req.RazorpayPaymentID,
				Cause:     env.asError(status),
			}
		}
		return nil, env.asError(status)
	}

	return &models.VerifyPaymentResponse{
		Success:   true,
		Message:   env.Message,
		OrderID:   env.OrderID,
		PaymentID: env.PaymentID,
		Booking:   env.Booking,
	}, nil
}

// NotifyDismissed tells the server the guest closed the checkout
func (c *Client) NotifyDismissed(ctx context.Context, orderID string) error {
	status, env, err := c.post(ctx, "/api/razorpay/checkout-dismissed", models.CheckoutDismissedRequest{RazorpayOrderID: orderID}, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return env.asError(status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, headers map[string]string) (int, *envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("POST %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	env := &envelope{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, env); err != nil {
			env.Message = strings.TrimSpace(string(raw))
		}
	}
	return resp.StatusCode, env, nil
}

func (e *envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return "request failed"
}

func (e *envelope) asError(status int) error {
	return &ServerError{StatusCode: status, ErrorCode: e.Error, Message: e.message()}
}
