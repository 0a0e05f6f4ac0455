package funnel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
)

// ErrCheckoutDismissed is returned when the guest closed the checkout without paying
var ErrCheckoutDismissed = errors.New("checkout dismissed")

// State is where the checkout flow currently stands
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateConfirmed
	StateVerificationFailed
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateVerificationFailed:
		return "verification_failed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// API is the booking API as seen by the flow
type API interface {
	SubmitBooking(ctx context.Context, draft *models.BookingDraft, idempotencyKey string) (*models.Booking, error)
	CreateOrder(ctx context.Context, booking *models.Booking) (*models.PaymentOrder, string, error)
	VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error)
	NotifyDismissed(ctx context.Context, orderID string) error
}

// Result is what the confirmation screen is rendered from
type Result struct {
	Booking *models.Booking
	Payment *models.PaymentDetails
}

// Flow runs submit, create order, checkout, verify in that order
type Flow struct {
	api      API
	bridge   Bridge
	notifier Notifier
	merchant Merchant
	logger   *logrus.Logger

	mu           sync.Mutex
	state        State
	pending      *models.Booking // created but unpaid; reused when the guest retries
	pendingDraft string          // fingerprint of the draft pending was created from
}

// NewFlow creates a checkout flow
func NewFlow(api API, bridge Bridge, notifier Notifier, merchant Merchant, logger *logrus.Logger) *Flow {
	return &Flow{
		api:      api,
		bridge:   bridge,
		notifier: notifier,
		merchant: merchant,
		logger:   logger,
	}
}

// State returns the current state
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Checkout submits the wizard's draft and takes the guest through payment.
// A second call while one is running fails with models.ErrSubmissionInProgress.
// A booking left unpaid by an earlier attempt is reused only while the draft is
// unchanged; an edited draft is validated and submitted as a new booking.
func (f *Flow) Checkout(ctx context.Context, w *Wizard, idempotencyKey string) (*Result, error) {
	draft := w.Draft()
	fingerprint, err := draftFingerprint(&draft)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return nil, models.ErrSubmissionInProgress
	}
	f.state = StateSubmitting
	if f.pending != nil && f.pendingDraft != fingerprint {
		f.logger.WithFields(logrus.Fields{
			"booking_id":        f.pending.ID,
			"booking_reference": f.pending.ReferenceCode,
		}).Info("Draft changed after checkout was dismissed; unpaid booking left pending")
		f.pending, f.pendingDraft = nil, ""
	}
	pending := f.pending
	f.mu.Unlock()

	result, state, err := f.run(ctx, w, &draft, submissionKey(idempotencyKey, fingerprint), pending)

	f.mu.Lock()
	f.state = state
	switch state {
	case StateConfirmed, StateVerificationFailed:
		f.pending, f.pendingDraft = nil, ""
	case StateCancelled:
		if result != nil {
			f.pending, f.pendingDraft = result.Booking, fingerprint
		}
	}
	f.mu.Unlock()

	if state == StateConfirmed {
		w.Reset()
	}
	return result, err
}

func (f *Flow) run(ctx context.Context, w *Wizard, draft *models.BookingDraft, idempotencyKey string, booking *models.Booking) (*Result, State, error) {
	if booking == nil {
		if err := w.Validate(); err != nil {
			f.notifier.Error("Please check the highlighted fields and try again.")
			return nil, StateIdle, err
		}

		created, err := f.api.SubmitBooking(ctx, draft, idempotencyKey)
		if err != nil {
			f.notifier.Error("We couldn't create your booking. Please try again.")
			return nil, StateFailed, fmt.Errorf("submit booking: %w", err)
		}
		booking = created
	}
	result := &Result{Booking: booking}

	order, keyID, err := f.api.CreateOrder(ctx, booking)
	if err != nil {
		f.notifier.Error("We couldn't start the payment. Your booking " + booking.ReferenceCode + " is saved; please try again.")
		return result, StateCancelled, fmt.Errorf("create order: %w", err)
	}

	outcome, err := f.bridge.Open(ctx, NewCheckoutOptions(keyID, order, booking, draft.Guest, f.merchant))
	if err != nil {
		// no callback arrived; the booking stays pending on the backend
		f.logger.WithError(err).WithField("order_id", order.ID).Warn("Checkout ended without a callback")
		return result, StateCancelled, err
	}

	switch o := outcome.(type) {
	case OutcomeDismissed:
		if err := f.api.NotifyDismissed(ctx, order.ID); err != nil {
			f.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to report dismissed checkout")
		}
		f.notifier.Info("Payment cancelled. You can try again whenever you're ready.")
		return result, StateCancelled, ErrCheckoutDismissed

	case OutcomeSuccess:
		return f.verify(ctx, result, order, o)

	default:
		return result, StateFailed, fmt.Errorf("unexpected checkout outcome %T", outcome)
	}
}

// verify forwards the callback exactly once; the server is the only judge of the signature
func (f *Flow) verify(ctx context.Context, result *Result, order *models.PaymentOrder, o OutcomeSuccess) (*Result, State, error) {
	resp, err := f.api.VerifyPayment(ctx, &models.VerifyPaymentRequest{
		RazorpayOrderID:   o.OrderID,
		RazorpayPaymentID: o.PaymentID,
		RazorpaySignature: o.Signature,
		BookingID:         result.Booking.ID,
		Amount:            order.Amount,
	})
	if err == nil && !resp.Success {
		err = &ServerError{StatusCode: 200, Message: resp.Message}
	}
	if err != nil {
		f.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": result.Booking.ID,
			"order_id":   o.OrderID,
			"payment_id": o.PaymentID,
		}).Error("Payment verification failed")
		f.notifier.Error("We couldn't confirm your payment. Please contact support with payment ID " + o.PaymentID + ".")
		return result, StateVerificationFailed, err
	}

	if resp.Booking != nil {
		result.Booking = resp.Booking
	}
	result.Payment = &models.PaymentDetails{
		OrderID:   o.OrderID,
		PaymentID: o.PaymentID,
		Signature: o.Signature,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Status:    models.PaymentStatusPaid,
	}
	f.notifier.Success("Payment successful! Your booking " + result.Booking.ReferenceCode + " is confirmed.")
	return result, StateConfirmed, nil
}

// draftFingerprint identifies the exact draft a booking was submitted from
func draftFingerprint(draft *models.BookingDraft) (string, error) {
	raw, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("fingerprint draft: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// submissionKey scopes the caller's idempotency key to one draft, so a retry of
// the same draft replays while an edited draft creates its own booking
func submissionKey(key, fingerprint string) string {
	if key == "" {
		return ""
	}
	const maxKey = 128 - 13
	if len(key) > maxKey {
		key = key[:maxKey]
	}
	return key + ":" + fingerprint[:12]
}
