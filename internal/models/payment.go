package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentOrder is a Razorpay order. Receipt carries the booking reference code,
// which binds the gateway order to the backend booking for reconciliation.
type PaymentOrder struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity,omitempty"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status,omitempty"`
	Attempts   int               `json:"attempts"`
	Notes      map[string]string `json:"notes,omitempty"`
	CreatedAt  int64             `json:"created_at,omitempty"`
}

// PaymentDetails is what the confirmation screen shows about a verified payment.
// It is display data only; backend state never depends on it.
type PaymentDetails struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature,omitempty"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// CreateOrderRequest is the body of POST /api/razorpay/create-order
type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// CreateOrderResponse is returned by POST /api/razorpay/create-order
type CreateOrderResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Order   *PaymentOrder `json:"order,omitempty"`
	KeyID   string        `json:"keyId,omitempty"`
}

// VerifyPaymentRequest is the body of POST /api/razorpay/verify-payment
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	BookingID         int64  `json:"bookingId"`
	Amount            int64  `json:"amount"`
}

// VerifyPaymentResponse is returned by POST /api/razorpay/verify-payment
type VerifyPaymentResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Error     string   `json:"error,omitempty"`
	OrderID   string   `json:"orderId,omitempty"`
	PaymentID string   `json:"paymentId,omitempty"`
	Booking   *Booking `json:"booking,omitempty"`
}

// CheckoutDismissedRequest is sent when the guest closes the hosted checkout
type CheckoutDismissedRequest struct {
	RazorpayOrderID string `json:"razorpay_order_id" binding:"required"`
}

// PaymentOrderRecord is our ledger row for a gateway order, one per booking reference
type PaymentOrderRecord struct {
	ID             uuid.UUID `json:"id" db:"id"`
	GatewayOrderID string    `json:"gateway_order_id" db:"gateway_order_id"`
	Receipt        string    `json:"receipt" db:"receipt"`
	BookingID      *int64    `json:"booking_id,omitempty" db:"booking_id"`
	AmountCents    int64     `json:"amount_cents" db:"amount_cents"`
	Currency       string    `json:"currency" db:"currency"`
	GatewayStatus  string    `json:"gateway_status" db:"gateway_status"`
	Notes          JSONB     `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ToPaymentOrder rebuilds the gateway view of a stored order
func (r *PaymentOrderRecord) ToPaymentOrder() *PaymentOrder {
	notes := make(map[string]string, len(r.Notes))
	for k, v := range r.Notes {
		if s, ok := v.(string); ok {
			notes[k] = s
		}
	}
	return &PaymentOrder{
		ID:        r.GatewayOrderID,
		Entity:    "order",
		Amount:    r.AmountCents,
		AmountDue: r.AmountCents,
		Currency:  r.Currency,
		Receipt:   r.Receipt,
		Status:    r.GatewayStatus,
		Notes:     notes,
		CreatedAt: r.CreatedAt.Unix(),
	}
}
