package funnel

import (
	"context"
	"strconv"

	"github.com/staywell/booking-funnel/internal/models"
)

// Prefill is the guest data shown pre-filled in the checkout form
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Theme customises the hosted checkout
type Theme struct {
	Color string `json:"color,omitempty"`
}

// CheckoutOptions is the configuration handed to the hosted checkout script
type CheckoutOptions struct {
	Key         string            `json:"key"`
	OrderID     string            `json:"order_id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Prefill     Prefill           `json:"prefill"`
	Notes       map[string]string `json:"notes,omitempty"`
	Theme       Theme             `json:"theme"`
}

// Merchant identifies the business on the checkout screen
type Merchant struct {
	Name       string
	ThemeColor string
}

// NewCheckoutOptions builds checkout options from the created booking and its gateway order.
// Amount and currency are taken from the order, which was opened for the booking's total.
func NewCheckoutOptions(keyID string, order *models.PaymentOrder, booking *models.Booking, guest models.GuestDetails, merchant Merchant) CheckoutOptions {
	return CheckoutOptions{
		Key:         keyID,
		OrderID:     order.ID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Name:        merchant.Name,
		Description: "Booking " + booking.ReferenceCode,
		Prefill: Prefill{
			Name:    guest.FullName,
			Email:   guest.Email,
			Contact: guest.Phone,
		},
		Notes: map[string]string{
			"booking_id":        strconv.FormatInt(booking.ID, 10),
			"booking_reference": booking.ReferenceCode,
		},
		Theme: Theme{Color: merchant.ThemeColor},
	}
}

// Outcome is what the hosted checkout reported back
type Outcome interface {
	outcome()
}

// OutcomeSuccess carries the identifiers and signature of a completed payment.
// It is not trusted until the server verifies the signature.
type OutcomeSuccess struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// OutcomeDismissed means the guest closed the checkout without paying
type OutcomeDismissed struct{}

func (OutcomeSuccess) outcome()   {}
func (OutcomeDismissed) outcome() {}

// Bridge hands control to the hosted checkout and waits for its callback.
// If ctx ends first, Open returns ctx.Err().
type Bridge interface {
	Open(ctx context.Context, opts CheckoutOptions) (Outcome, error)
}

// ChannelBridge connects the flow to a host that renders the checkout elsewhere
// (a webview, a browser tab). Opened receives the options; the host delivers the
// callback on Outcomes.
type ChannelBridge struct {
	Opened   chan CheckoutOptions
	Outcomes chan Outcome
}

// NewChannelBridge creates a bridge with buffered channels
func NewChannelBridge() *ChannelBridge {
	return &ChannelBridge{
		Opened:   make(chan CheckoutOptions, 1),
		Outcomes: make(chan Outcome, 1),
	}
}

// Open publishes opts and waits for the host's outcome
func (b *ChannelBridge) Open(ctx context.Context, opts CheckoutOptions) (Outcome, error) {
	select {
	case b.Opened <- opts:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case outcome := <-b.Outcomes:
		return outcome, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
