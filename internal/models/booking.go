package models

import (
	"time"
)

// BookingStatus is the reservation state held by the backend
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus values written to the backend booking record
const (
	PaymentStatusUnpaid    = "unpaid"
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

const (
	PaymentMethodOnline      = "online"
	PaymentProcessorRazorpay = "razorpay"
)

// GuestDetails is the personal data collected in the first wizard step
type GuestDetails struct {
	FullName        string `json:"fullName" validate:"required,min=2,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required"`
	AlternatePhone  string `json:"alternatePhone,omitempty"`
	IDType          string `json:"idType,omitempty" validate:"omitempty,oneof=passport aadhaar driving_licence national_id"`
	IDNumber        string `json:"idNumber,omitempty" validate:"required_with=IDType,max=40"`
	Country         string `json:"country,omitempty"`
	SpecialRequests string `json:"specialRequests,omitempty" validate:"max=1000"`
}

// AddOn is an optional extra (breakfast, airport pickup...) selected in step two
type AddOn struct {
	ID         int64  `json:"id" validate:"required"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents" validate:"gte=0"`
	Quantity   int    `json:"quantity,omitempty" validate:"gte=0"`
}

// LineTotal returns the add-on price multiplied by its quantity (minimum one)
func (a AddOn) LineTotal() int64 {
	qty := a.Quantity
	if qty <= 0 {
		qty = 1
	}
	return a.PriceCents * int64(qty)
}

// BookingDraft is the client-held form state across the three wizard steps.
// It is never persisted; the backend owns the resulting Booking.
type BookingDraft struct {
	HotelID            int64        `json:"hotelId" validate:"required,gt=0"`
	RoomID             int64        `json:"roomId" validate:"required,gt=0"`
	RoomName           string       `json:"roomName,omitempty"`
	RoomBasePriceCents int64        `json:"roomBasePriceCents" validate:"gte=0"`
	Currency           string       `json:"currency" validate:"required,len=3"`
	CheckIn            time.Time    `json:"checkIn"`
	CheckOut           time.Time    `json:"checkOut"`
	Adults             int          `json:"adults" validate:"gte=1,lte=12"`
	Children           int          `json:"children" validate:"gte=0,lte=12"`
	Guest              GuestDetails `json:"guest"`
	AddOns             []AddOn      `json:"addOns,omitempty" validate:"dive"`
	PromoCode          string       `json:"promoCode,omitempty" validate:"max=32"`
	TaxRateBasisPoints int          `json:"taxRateBasisPoints,omitempty" validate:"gte=0,lte=10000"`
}

// Totals holds the computed money fields of a draft, all in minor units
type Totals struct {
	RoomCents        int64 `json:"roomCents"`
	AddOnsCents      int64 `json:"addOnsCents"`
	SubtotalCents    int64 `json:"subtotalCents"`
	TaxAmountCents   int64 `json:"taxAmountCents"`
	TotalAmountCents int64 `json:"totalAmountCents"`
}

// Nights returns the number of nights between check-in and check-out
func (d *BookingDraft) Nights() int {
	if d.CheckOut.Before(d.CheckIn) || d.CheckOut.Equal(d.CheckIn) {
		return 0
	}
	in := time.Date(d.CheckIn.Year(), d.CheckIn.Month(), d.CheckIn.Day(), 0, 0, 0, 0, time.UTC)
	out := time.Date(d.CheckOut.Year(), d.CheckOut.Month(), d.CheckOut.Day(), 0, 0, 0, 0, time.UTC)
	return int(out.Sub(in).Hours() / 24)
}

// ComputeTotals derives subtotal, tax and total from the draft.
// RoomBasePriceCents is the price for the whole stay as quoted by the availability check.
func (d *BookingDraft) ComputeTotals() Totals {
	var addOns int64
	for _, a := range d.AddOns {
		addOns += a.LineTotal()
	}
	subtotal := d.RoomBasePriceCents + addOns

	// round half up on basis points
	tax := (subtotal*int64(d.TaxRateBasisPoints) + 5000) / 10000

	return Totals{
		RoomCents:        d.RoomBasePriceCents,
		AddOnsCents:      addOns,
		SubtotalCents:    subtotal,
		TaxAmountCents:   tax,
		TotalAmountCents: subtotal + tax,
	}
}

// AddOnIDs returns the selected add-on identifiers
func (d *BookingDraft) AddOnIDs() []int64 {
	ids := make([]int64, 0, len(d.AddOns))
	for _, a := range d.AddOns {
		ids = append(ids, a.ID)
	}
	return ids
}

// Booking is the backend's record of a reservation. This service never owns it;
// it is created through the backend API and patched after a verified payment.
type Booking struct {
	ID                  int64         `json:"id"`
	ReferenceCode       string        `json:"referenceCode"`
	HotelID             int64         `json:"hotelId"`
	RoomID              int64         `json:"roomId,omitempty"`
	Status              BookingStatus `json:"status"`
	PaymentStatus       string        `json:"paymentStatus"`
	PaymentMethod       string        `json:"paymentMethod,omitempty"`
	PaymentProcessor    string        `json:"paymentProcessor,omitempty"`
	Currency            string        `json:"currency"`
	TotalAmountCents    int64         `json:"totalAmountCents"`
	TaxAmountCents      int64         `json:"taxAmountCents"`
	FeeAmountCents      int64         `json:"feeAmountCents"`
	DiscountAmountCents int64         `json:"discountAmountCents"`
	AmountPaidCents     int64         `json:"amountPaidCents"`
	BalanceDueCents     int64         `json:"balanceDueCents"`
	CheckIn             *time.Time    `json:"checkIn,omitempty"`
	CheckOut            *time.Time    `json:"checkOut,omitempty"`
	Adults              int           `json:"adults,omitempty"`
	Children            int           `json:"children,omitempty"`
	Customer            *GuestDetails `json:"customer,omitempty"`
	PromoCode           string        `json:"promoCode,omitempty"`
	CreatedAt           *time.Time    `json:"createdAt,omitempty"`
}

// BalanceConsistent reports whether amountPaid + balanceDue == total
func (b *Booking) BalanceConsistent() bool {
	return b.AmountPaidCents+b.BalanceDueCents == b.TotalAmountCents
}

// IsPaid reports whether the backend marks the booking as settled
func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentStatusPaid || b.PaymentStatus == PaymentStatusCompleted
}

// ============================================================================
// Backend wire payloads
// ============================================================================

// BookingDetails is the stay section of the backend create request
type BookingDetails struct {
	CheckIn  string        `json:"checkIn"`
	CheckOut string        `json:"checkOut"`
	Nights   int           `json:"nights"`
	Adults   int           `json:"adults"`
	Children int           `json:"children"`
	Status   BookingStatus `json:"status"`
}

// SelectedRoom is the room snapshot sent with the booking
type SelectedRoom struct {
	RoomID      int64  `json:"roomId"`
	Name        string `json:"name,omitempty"`
	AmountCents int64  `json:"amountCents"`
}

// CreateBookingPayload is the body POSTed to the backend's /api/bookings
type CreateBookingPayload struct {
	HotelID          int64          `json:"hotelId"`
	BookingDetails   BookingDetails `json:"bookingDetails"`
	CustomerData     GuestDetails   `json:"customerData"`
	SelectedRooms    []SelectedRoom `json:"selectedRooms"`
	SelectedAddOns   []AddOn        `json:"selectedAddOns"`
	Currency         string         `json:"currency"`
	PromoCode        string         `json:"promoCode,omitempty"`
	PaidAmountCents  int64          `json:"paidAmountCents"`
	TaxAmountCents   int64          `json:"taxAmountCents"`
	TotalAmountCents int64          `json:"totalAmountCents"`
	IdempotencyKey   string         `json:"idempotencyKey,omitempty"`
}

// CreateBookingResponse is the backend (and our proxy) envelope for a created booking
type CreateBookingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		Booking Booking `json:"booking"`
	} `json:"data"`
	Replayed bool `json:"replayed,omitempty"`
}

// BookingPaymentPatch is the body PATCHed to /api/bookings/{id}/payment
type BookingPaymentPatch struct {
	AmountPaidCents    int64  `json:"amountPaidCents"`
	PaymentStatus      string `json:"paymentStatus"`
	PaymentMethod      string `json:"paymentMethod"`
	PaymentProcessor   string `json:"paymentProcessor"`
	ProcessorPaymentID string `json:"processorPaymentId"`
	TransactionID      string `json:"transactionId"`
	Notes              string `json:"notes,omitempty"`
}
