package models

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationStatus is the state of a captured-but-unrecorded payment
type ReconciliationStatus string

const (
	ReconciliationPending  ReconciliationStatus = "pending"
	ReconciliationResolved ReconciliationStatus = "resolved"
	ReconciliationFailed   ReconciliationStatus = "failed" // max attempts reached, needs a human
)

// ReconciliationEntry records a payment the gateway captured but the backend never recorded
type ReconciliationEntry struct {
	ID             uuid.UUID            `json:"id" db:"id"`
	BookingID      int64                `json:"booking_id" db:"booking_id"`
	GatewayOrderID string               `json:"gateway_order_id" db:"gateway_order_id"`
	PaymentID      string               `json:"payment_id" db:"payment_id"`
	AmountCents    int64                `json:"amount_cents" db:"amount_cents"`
	Status         ReconciliationStatus `json:"status" db:"status"`
	Attempts       int                  `json:"attempts" db:"attempts"`
	LastError      *string              `json:"last_error,omitempty" db:"last_error"`
	ResolvedBy     *string              `json:"resolved_by,omitempty" db:"resolved_by"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" db:"updated_at"`
}

// PaymentPatch rebuilds the backend update that failed originally
func (e *ReconciliationEntry) PaymentPatch() BookingPaymentPatch {
	return NewPaidPatch(e.AmountCents, e.GatewayOrderID, e.PaymentID, "reconciled after failed update")
}

// NewPaidPatch builds the backend update for a verified online payment
func NewPaidPatch(amount int64, orderID, paymentID, notes string) BookingPaymentPatch {
	return BookingPaymentPatch{
		AmountPaidCents:    amount,
		PaymentStatus:      PaymentStatusPaid,
		PaymentMethod:      PaymentMethodOnline,
		PaymentProcessor:   PaymentProcessorRazorpay,
		ProcessorPaymentID: paymentID,
		TransactionID:      orderID,
		Notes:              notes,
	}
}
