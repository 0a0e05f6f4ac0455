package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staywell/booking-funnel/pkg/currency"
)

func validDraft(now time.Time) *BookingDraft {
	return &BookingDraft{
		HotelID:            7,
		RoomID:             21,
		RoomName:           "Deluxe Lake View",
		RoomBasePriceCents: 500000,
		Currency:           "inr",
		CheckIn:            now.AddDate(0, 0, 3),
		CheckOut:           now.AddDate(0, 0, 5),
		Adults:             2,
		Guest: GuestDetails{
			FullName: "Asha Menon",
			Email:    "asha@example.com",
			Phone:    "98765 43210",
		},
		AddOns: []AddOn{
			{ID: 1, Name: "Breakfast", PriceCents: 15000},
			{ID: 2, Name: "Airport pickup", PriceCents: 5000},
		},
	}
}

func TestComputeTotals(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("zero tax total is base plus add-ons", func(t *testing.T) {
		totals := validDraft(now).ComputeTotals()

		assert.Equal(t, int64(500000), totals.RoomCents)
		assert.Equal(t, int64(20000), totals.AddOnsCents)
		assert.Equal(t, int64(520000), totals.SubtotalCents)
		assert.Equal(t, int64(0), totals.TaxAmountCents)
		assert.Equal(t, int64(520000), totals.TotalAmountCents)
		assert.Equal(t, "₹5,200", currency.MustFormat(totals.TotalAmountCents, "INR"))
	})

	t.Run("tax rounds half up", func(t *testing.T) {
		draft := validDraft(now)
		draft.RoomBasePriceCents = 333
		draft.AddOns = nil
		draft.TaxRateBasisPoints = 1500 // 15% of 333 = 49.95

		totals := draft.ComputeTotals()
		assert.Equal(t, int64(50), totals.TaxAmountCents)
		assert.Equal(t, int64(383), totals.TotalAmountCents)
	})

	t.Run("quantity multiplies add-on price", func(t *testing.T) {
		draft := validDraft(now)
		draft.AddOns = []AddOn{{ID: 1, PriceCents: 15000, Quantity: 2}}

		assert.Equal(t, int64(530000), draft.ComputeTotals().TotalAmountCents)
	})
}

func TestNights(t *testing.T) {
	draft := &BookingDraft{
		CheckIn:  time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 3, 6, 11, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, 2, draft.Nights())

	draft.CheckOut = draft.CheckIn
	assert.Equal(t, 0, draft.Nights())
}

func TestBooking_BalanceConsistent(t *testing.T) {
	b := &Booking{TotalAmountCents: 520000, AmountPaidCents: 0, BalanceDueCents: 520000}
	assert.True(t, b.BalanceConsistent())

	b.AmountPaidCents = 520000
	assert.False(t, b.BalanceConsistent())

	b.BalanceDueCents = 0
	assert.True(t, b.BalanceConsistent())
}

func TestBooking_IsPaid(t *testing.T) {
	assert.True(t, (&Booking{PaymentStatus: PaymentStatusPaid}).IsPaid())
	assert.True(t, (&Booking{PaymentStatus: PaymentStatusCompleted}).IsPaid())
	assert.False(t, (&Booking{PaymentStatus: PaymentStatusPending}).IsPaid())
}

func TestValidateDraft(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("valid draft is normalised", func(t *testing.T) {
		draft := validDraft(now)
		require.NoError(t, ValidateDraft(draft, now))
		assert.Equal(t, "INR", draft.Currency)
		assert.Equal(t, "+919876543210", draft.Guest.Phone)
	})

	t.Run("check-out before check-in", func(t *testing.T) {
		draft := validDraft(now)
		draft.CheckOut = draft.CheckIn.AddDate(0, 0, -1)

		err := ValidateDraft(draft, now)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, FieldError{Field: "checkOut", Message: "must be after check-in"})
	})

	t.Run("missing guest fields use json names", func(t *testing.T) {
		draft := validDraft(now)
		draft.Guest.Email = "not-an-email"
		draft.Guest.FullName = ""

		err := ValidateDraft(draft, now)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		fields := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, f.Field)
		}
		assert.Contains(t, fields, "guest.email")
		assert.Contains(t, fields, "guest.fullName")
	})

	t.Run("invalid phone and currency", func(t *testing.T) {
		draft := validDraft(now)
		draft.Guest.Phone = "12345"
		draft.Currency = "ZZZ"

		err := ValidateDraft(draft, now)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Fields, 2)
		assert.Equal(t, 422, verr.HTTPStatus())
	})

	t.Run("zero dates and past check-in", func(t *testing.T) {
		draft := validDraft(now)
		draft.CheckOut = time.Time{}
		draft.CheckIn = now.AddDate(0, 0, -2)

		err := ValidateDraft(draft, now)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, FieldError{Field: "checkOut", Message: "is required"})
	})
}

func TestAsAPIError(t *testing.T) {
	wrapped := &BackendReconciliationError{BookingID: 9, PaymentID: "pay_1", Cause: ErrNotFound}

	apiErr, ok := AsAPIError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "payment_verified_not_recorded", apiErr.Code())
	assert.ErrorIs(t, wrapped, ErrNotFound)

	_, ok = AsAPIError(ErrNotFound)
	assert.False(t, ok)
}
