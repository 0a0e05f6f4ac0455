package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by repositories and the backend client when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrSubmissionInProgress is returned when the same idempotency key is already being processed
	ErrSubmissionInProgress = errors.New("booking submission already in progress")
)

// APIError is implemented by every error the HTTP layer maps to a status code
type APIError interface {
	error
	HTTPStatus() int
	Code() string
}

// FieldError describes one rejected form field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a booking draft fails form validation.
// The user can correct the input and resubmit.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) HTTPStatus() int { return http.StatusUnprocessableEntity }
func (e *ValidationError) Code() string    { return "validation_error" }

// Add appends a field failure
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// BookingCreationError is returned when the reservation backend rejects a booking.
// The flow must stop here; no payment order is created.
type BookingCreationError struct {
	StatusCode int
	Message    string
}

func (e *BookingCreationError) Error() string {
	return fmt.Sprintf("booking creation failed (status %d): %s", e.StatusCode, e.Message)
}

func (e *BookingCreationError) HTTPStatus() int { return http.StatusBadGateway }
func (e *BookingCreationError) Code() string    { return "booking_creation_failed" }

// IdempotencyConflictError is returned when an Idempotency-Key is reused with a different draft
type IdempotencyConflictError struct {
	Key string
}

func (e *IdempotencyConflictError) Error() string {
	return "idempotency key " + e.Key + " was already used for a different booking request"
}

func (e *IdempotencyConflictError) HTTPStatus() int { return http.StatusUnprocessableEntity }
func (e *IdempotencyConflictError) Code() string    { return "idempotency_key_reused" }

// MissingFieldError is returned when a required request field is absent
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldError) HTTPStatus() int { return http.StatusBadRequest }
func (e *MissingFieldError) Code() string    { return "missing_fields" }

// GatewayConfigError means payment gateway credentials are not configured.
// It is an operator problem and is never retried.
type GatewayConfigError struct {
	Missing string
}

func (e *GatewayConfigError) Error() string {
	return "payment gateway not configured: missing " + e.Missing
}

func (e *GatewayConfigError) HTTPStatus() int { return http.StatusInternalServerError }
func (e *GatewayConfigError) Code() string    { return "gateway_not_configured" }

// GatewayError wraps a non-success response from the payment gateway API
type GatewayError struct {
	StatusCode  int
	Description string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway returned status %d: %s", e.StatusCode, e.Description)
}

func (e *GatewayError) HTTPStatus() int { return http.StatusBadGateway }
func (e *GatewayError) Code() string    { return "gateway_error" }

// OrderConflictError is returned when an order already exists for a receipt with different terms
type OrderConflictError struct {
	Receipt string
}

func (e *OrderConflictError) Error() string {
	return "a payment order with different amount or currency already exists for receipt " + e.Receipt
}

func (e *OrderConflictError) HTTPStatus() int { return http.StatusConflict }
func (e *OrderConflictError) Code() string    { return "order_conflict" }

// SignatureMismatchError is returned when a checkout callback signature does not verify.
// Payment state is never advanced after this error.
type SignatureMismatchError struct {
	OrderID   string
	PaymentID string
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("payment signature mismatch for order %s payment %s", e.OrderID, e.PaymentID)
}

func (e *SignatureMismatchError) HTTPStatus() int { return http.StatusBadRequest }
func (e *SignatureMismatchError) Code() string    { return "signature_mismatch" }

// BackendReconciliationError means the gateway captured the payment but the booking
// record could not be updated. Operators must reconcile it by hand or via the retry sweep.
type BackendReconciliationError struct {
	BookingID int64
	OrderID   string
	PaymentID string
	Cause     error
}

func (e *BackendReconciliationError) Error() string {
	return fmt.Sprintf("payment %s verified but booking %d not updated: %v", e.PaymentID, e.BookingID, e.Cause)
}

func (e *BackendReconciliationError) Unwrap() error { return e.Cause }

func (e *BackendReconciliationError) HTTPStatus() int { return http.StatusInternalServerError }
func (e *BackendReconciliationError) Code() string    { return "payment_verified_not_recorded" }

// AsAPIError unwraps err into an APIError if one is in the chain
func AsAPIError(err error) (APIError, bool) {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// RateLimitError is returned when a client IP exceeds the request limit for a scope
type RateLimitError struct {
	Scope      string
	RetryAfter time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Too many %s requests. Please try again after %s", e.Scope, e.RetryAfter.Format("15:04:05"))
}

func (e *RateLimitError) HTTPStatus() int { return http.StatusTooManyRequests }
func (e *RateLimitError) Code() string    { return "rate_limited" }
