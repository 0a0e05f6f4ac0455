package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutSessionStatus tracks one hosted-checkout attempt from the server's point of view
type CheckoutSessionStatus string

const (
	CheckoutAwaitingPayment    CheckoutSessionStatus = "awaiting_payment"
	CheckoutPaid               CheckoutSessionStatus = "paid"
	CheckoutVerificationFailed CheckoutSessionStatus = "verification_failed"
	CheckoutUnrecorded         CheckoutSessionStatus = "unrecorded"
	CheckoutCancelled          CheckoutSessionStatus = "cancelled"
	CheckoutAbandoned          CheckoutSessionStatus = "abandoned"
)

// IsTerminal reports whether no further callback can change the session
func (s CheckoutSessionStatus) IsTerminal() bool {
	switch s {
	case CheckoutPaid, CheckoutAbandoned:
		return true
	default:
		return false
	}
}

// CheckoutSession links a gateway order to the booking it pays for
type CheckoutSession struct {
	ID             uuid.UUID             `json:"id" db:"id"`
	GatewayOrderID string                `json:"gateway_order_id" db:"gateway_order_id"`
	BookingRef     string                `json:"booking_reference" db:"booking_reference"`
	BookingID      *int64                `json:"booking_id,omitempty" db:"booking_id"`
	AmountCents    int64                 `json:"amount_cents" db:"amount_cents"`
	Currency       string                `json:"currency" db:"currency"`
	Status         CheckoutSessionStatus `json:"status" db:"status"`
	PaymentID      *string               `json:"payment_id,omitempty" db:"payment_id"`
	LastError      *string               `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at" db:"updated_at"`
}

// NewCheckoutSession creates a session waiting for the guest to pay
func NewCheckoutSession(order *PaymentOrder, bookingID *int64) *CheckoutSession {
	now := time.Now()
	return &CheckoutSession{
		ID:             uuid.New(),
		GatewayOrderID: order.ID,
		BookingRef:     order.Receipt,
		BookingID:      bookingID,
		AmountCents:    order.Amount,
		Currency:       order.Currency,
		Status:         CheckoutAwaitingPayment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
