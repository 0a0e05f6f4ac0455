package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/staywell/booking-funnel/internal/models"
)

// ReservationBackend is the external system of record for bookings
type ReservationBackend interface {
	CreateBooking(ctx context.Context, payload *models.CreateBookingPayload) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error)
	PatchPayment(ctx context.Context, bookingID int64, patch *models.BookingPaymentPatch) (*models.Booking, error)
}

// PaymentGateway opens orders and verifies checkout signatures
type PaymentGateway interface {
	KeyID() string
	CheckConfigured() error
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.PaymentOrder, error)
	VerifySignature(orderID, paymentID, signature string) (bool, error)
}

// SubmissionStore persists idempotency records for booking submissions
type SubmissionStore interface {
	Begin(ctx context.Context, key, requestHash string) (*models.BookingSubmission, error)
	GetByKey(ctx context.Context, key string) (*models.BookingSubmission, error)
	Complete(ctx context.Context, id uuid.UUID, booking *models.Booking) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	Restart(ctx context.Context, id uuid.UUID, requestHash string) (bool, error)
}

// OrderLedger stores one gateway order per booking reference
type OrderLedger interface {
	Create(ctx context.Context, rec *models.PaymentOrderRecord) error
	GetByReceipt(ctx context.Context, receipt string) (*models.PaymentOrderRecord, error)
	GetByGatewayOrderID(ctx context.Context, orderID string) (*models.PaymentOrderRecord, error)
	UpdateStatus(ctx context.Context, orderID, status string) error
}

// SessionStore tracks checkout sessions
type SessionStore interface {
	Create(ctx context.Context, s *models.CheckoutSession) error
	GetByOrderID(ctx context.Context, orderID string) (*models.CheckoutSession, error)
	UpdateStatus(ctx context.Context, orderID string, status models.CheckoutSessionStatus, paymentID, lastError *string) (bool, error)
	Reopen(ctx context.Context, orderID string) (bool, error)
	List(ctx context.Context, status models.CheckoutSessionStatus, limit int) ([]*models.CheckoutSession, error)
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.CheckoutSession, error)
}

// ReconciliationQueue holds captured payments the backend has not recorded
type ReconciliationQueue interface {
	Enqueue(ctx context.Context, e *models.ReconciliationEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationEntry, error)
	ListByStatus(ctx context.Context, status models.ReconciliationStatus, limit int) ([]*models.ReconciliationEntry, error)
	ListDue(ctx context.Context, maxAttempts, limit int) ([]*models.ReconciliationEntry, error)
	MarkResolved(ctx context.Context, id uuid.UUID, resolvedBy string) error
	RecordFailure(ctx context.Context, id uuid.UUID, lastError string, maxAttempts int) error
}

// AuditLog persists payment audit entries
type AuditLog interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}
