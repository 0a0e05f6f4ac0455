package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/database"
	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/pkg/currency"
)

// PaymentService creates gateway orders and confirms checkout callbacks
type PaymentService struct {
	gateway  PaymentGateway
	backend  ReservationBackend
	ledger   OrderLedger
	sessions SessionStore
	queue    ReconciliationQueue
	audit    *AuditRecorder
	logger   *logrus.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	gateway PaymentGateway,
	backend ReservationBackend,
	ledger OrderLedger,
	sessions SessionStore,
	queue ReconciliationQueue,
	audit *AuditRecorder,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		gateway:  gateway,
		backend:  backend,
		ledger:   ledger,
		sessions: sessions,
		queue:    queue,
		audit:    audit,
		logger:   logger,
	}
}

// KeyID returns the public gateway key for checkout.js
func (s *PaymentService) KeyID() string {
	return s.gateway.KeyID()
}

// CreateOrder opens a gateway order for a booking. The receipt is the booking reference
// code; a second call for the same receipt returns the order already opened.
func (s *PaymentService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, meta *RequestMeta) (*models.PaymentOrder, error) {
	var missing []string
	// zero is treated as missing: free bookings never reach the gateway
	if req.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if req.Currency == "" {
		missing = append(missing, "currency")
	}
	if req.Receipt == "" {
		missing = append(missing, "receipt")
	}
	bookingID := bookingIDFromNotes(req.Notes)
	if bookingID == nil {
		missing = append(missing, "notes.booking_id")
	}
	if len(missing) > 0 {
		return nil, &models.MissingFieldError{Fields: missing}
	}

	code, err := currency.Normalize(req.Currency)
	if err != nil {
		verr := &models.ValidationError{}
		verr.Add("currency", "is not a supported ISO 4217 code")
		return nil, verr
	}
	req.Currency = code

	if err := s.gateway.CheckConfigured(); err != nil {
		s.logger.WithError(err).Error("Payment gateway is not configured")
		return nil, err
	}

	if err := s.bindToBooking(ctx, *bookingID, req); err != nil {
		return nil, err
	}

	existing, err := s.ledger.GetByReceipt(ctx, req.Receipt)
	switch {
	case err == nil:
		return s.reuseOrder(ctx, existing, req, meta)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to look up payment order: %w", err)
	}

	start := time.Now()
	order, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		audit := models.NewPaymentAudit(models.PaymentEventOrderFailed, models.PaymentSourceGateway).
			SetBookingRef(req.Receipt).
			SetAmount(req.Amount, req.Currency).
			SetError(err.Error(), errorCode(err)).
			SetProcessingTime(start)
		var gwErr *models.GatewayError
		if errors.As(err, &gwErr) {
			audit.SetHTTPStatus(gwErr.StatusCode)
		}
		s.audit.Record(ctx, audit, meta)
		return nil, err
	}

	notes, _ := models.ToJSONB(order.Notes)
	record := &models.PaymentOrderRecord{
		ID:             uuid.New(),
		GatewayOrderID: order.ID,
		Receipt:        order.Receipt,
		BookingID:      bookingID,
		AmountCents:    order.Amount,
		Currency:       order.Currency,
		GatewayStatus:  order.Status,
		Notes:          notes,
		CreatedAt:      time.Now(),
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			// a concurrent request won the race; hand out its order instead
			winner, getErr := s.ledger.GetByReceipt(ctx, req.Receipt)
			if getErr == nil {
				s.logger.WithFields(logrus.Fields{
					"receipt":         req.Receipt,
					"orphan_order_id": order.ID,
				}).Warn("Concurrent order creation for receipt; discarding duplicate gateway order")
				return s.reuseOrder(ctx, winner, req, meta)
			}
		}
		s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to store payment order in ledger")
	}

	if err := s.sessions.Create(ctx, models.NewCheckoutSession(order, bookingID)); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to create checkout session")
	}

	audit := models.NewPaymentAudit(models.PaymentEventOrderCreated, models.PaymentSourceGateway).
		SetBookingRef(order.Receipt).
		SetOrder(order.ID).
		SetAmount(order.Amount, order.Currency).
		SetProcessingTime(start)
	if bookingID != nil {
		audit.SetBooking(*bookingID)
	}
	s.audit.Record(ctx, audit, meta)

	return order, nil
}

// bindToBooking checks the order terms against the backend booking named in the notes.
// An order may only charge a booking's own reference code for its full total.
func (s *PaymentService) bindToBooking(ctx context.Context, bookingID int64, req *models.CreateOrderRequest) error {
	booking, err := s.backend.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			verr := &models.ValidationError{}
			verr.Add("notes.booking_id", "does not reference a booking")
			return verr
		}
		return fmt.Errorf("failed to load booking %d: %w", bookingID, err)
	}

	verr := &models.ValidationError{}
	if booking.ReferenceCode != req.Receipt {
		verr.Add("receipt", "does not match the booking reference")
	}
	if booking.TotalAmountCents != req.Amount {
		verr.Add("amount", "does not match the booking total")
	}
	if booking.Currency != "" && !strings.EqualFold(booking.Currency, req.Currency) {
		verr.Add("currency", "does not match the booking currency")
	}
	if verr.HasErrors() {
		s.logger.WithFields(logrus.Fields{
			"booking_id":        bookingID,
			"receipt":           req.Receipt,
			"booking_reference": booking.ReferenceCode,
			"amount":            req.Amount,
			"booking_total":     booking.TotalAmountCents,
		}).Warn("Order request does not match its booking")
		return verr
	}
	return nil
}

func (s *PaymentService) reuseOrder(ctx context.Context, existing *models.PaymentOrderRecord, req *models.CreateOrderRequest, meta *RequestMeta) (*models.PaymentOrder, error) {
	if existing.AmountCents != req.Amount || existing.Currency != req.Currency {
		s.logger.WithFields(logrus.Fields{
			"receipt":         req.Receipt,
			"stored_amount":   existing.AmountCents,
			"stored_currency": existing.Currency,
			"amount":          req.Amount,
			"currency":        req.Currency,
		}).Warn("Order request conflicts with stored order")
		return nil, &models.OrderConflictError{Receipt: req.Receipt}
	}

	order := existing.ToPaymentOrder()
	if err := s.sessions.Create(ctx, models.NewCheckoutSession(order, existing.BookingID)); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to ensure checkout session")
	}
	// a retry after a dismissal or an expiry sweep pays into the same order
	if reopened, err := s.sessions.Reopen(ctx, order.ID); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to reopen checkout session")
	} else if reopened {
		s.logger.WithField("order_id", order.ID).Info("Checkout session reopened for retry")
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventOrderReused, models.PaymentSourceSystem).
		SetBookingRef(order.Receipt).
		SetOrder(order.ID).
		SetAmount(order.Amount, order.Currency), meta)

	s.logger.WithFields(logrus.Fields{
		"receipt":  order.Receipt,
		"order_id": order.ID,
	}).Info("Returning existing payment order")

	return order, nil
}

// VerifyPayment checks the checkout signature and, only when it matches, marks the booking paid
func (s *PaymentService) VerifyPayment(ctx context.Context, req *models.VerifyPaymentRequest, meta *RequestMeta) (*models.VerifyPaymentResponse, error) {
	var missing []string
	if req.RazorpayOrderID == "" {
		missing = append(missing, "razorpay_order_id")
	}
	if req.RazorpayPaymentID == "" {
		missing = append(missing, "razorpay_payment_id")
	}
	if req.RazorpaySignature == "" {
		missing = append(missing, "razorpay_signature")
	}
	if req.BookingID <= 0 {
		missing = append(missing, "bookingId")
	}
	if req.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return nil, &models.MissingFieldError{Fields: missing}
	}

	start := time.Now()
	orderID, paymentID := req.RazorpayOrderID, req.RazorpayPaymentID

	valid, err := s.gateway.VerifySignature(orderID, paymentID, req.RazorpaySignature)
	if err != nil {
		s.logger.WithError(err).Error("Cannot verify payment signature")
		return nil, err
	}

	callback := models.NewPaymentAudit(models.PaymentEventCallbackReceived, models.PaymentSourceCheckout).
		SetBooking(req.BookingID).
		SetOrder(orderID).
		SetPayment(paymentID).
		SetRequestPayload(map[string]interface{}{
			"razorpay_order_id":   orderID,
			"razorpay_payment_id": paymentID,
			"bookingId":           req.BookingID,
			"amount":              req.Amount,
		})

	if !valid {
		s.logger.WithFields(logrus.Fields{
			"order_id":   orderID,
			"payment_id": paymentID,
			"booking_id": req.BookingID,
		}).Warn("Payment signature mismatch")

		callback.EventType = models.PaymentEventSignatureMismatch
		callback.SetError("signature mismatch", "signature_mismatch").SetProcessingTime(start)
		s.audit.Record(ctx, callback, meta)

		msg := "signature mismatch"
		s.updateSession(ctx, orderID, models.CheckoutVerificationFailed, nil, &msg)
		return nil, &models.SignatureMismatchError{OrderID: orderID, PaymentID: paymentID}
	}

	record, err := s.ledger.GetByGatewayOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up payment order: %w", err)
	}
	if record != nil {
		if record.BookingID != nil && *record.BookingID != req.BookingID {
			callback.SetError("order belongs to a different booking", "booking_mismatch")
			s.audit.Record(ctx, callback, meta)
			verr := &models.ValidationError{}
			verr.Add("bookingId", "does not match the payment order")
			return nil, verr
		}
		if !callback.SetAmounts(record.AmountCents, req.Amount, record.Currency) {
			callback.EventType = models.PaymentEventAmountMismatch
			callback.SetError("amount differs from order amount", "amount_mismatch")
			s.audit.Record(ctx, callback, meta)
			verr := &models.ValidationError{}
			verr.Add("amount", "does not match the payment order amount")
			return nil, verr
		}
		callback.SetBookingRef(record.Receipt)
	}
	s.audit.Record(ctx, callback, meta)

	if resp, ok := s.duplicateCallback(ctx, req, meta); ok {
		return resp, nil
	}

	notes := "Razorpay order " + orderID
	patch := models.NewPaidPatch(req.Amount, orderID, paymentID, notes)
	booking, err := s.backend.PatchPayment(ctx, req.BookingID, &patch)
	if err != nil {
		return nil, s.recordUnrecorded(ctx, req, err, start, meta)
	}

	s.updateSession(ctx, orderID, models.CheckoutPaid, &paymentID, nil)
	if record != nil {
		if err := s.ledger.UpdateStatus(ctx, orderID, "paid"); err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).Warn("Failed to update ledger status")
		}
	}

	confirmed := models.NewPaymentAudit(models.PaymentEventBookingConfirmed, models.PaymentSourceBackend).
		SetBooking(req.BookingID).
		SetBookingRef(booking.ReferenceCode).
		SetOrder(orderID).
		SetPayment(paymentID).
		SetAmount(req.Amount, booking.Currency).
		SetProcessingTime(start)
	s.audit.Record(ctx, confirmed, meta)

	if !booking.BalanceConsistent() {
		s.logger.WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"total":       booking.TotalAmountCents,
			"amount_paid": booking.AmountPaidCents,
			"balance_due": booking.BalanceDueCents,
		}).Warn("Backend booking balance is inconsistent after payment")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": req.BookingID,
		"order_id":   orderID,
		"payment_id": paymentID,
		"amount":     req.Amount,
	}).Info("Payment verified and booking updated")

	return &models.VerifyPaymentResponse{
		Success:   true,
		Message:   "Payment verified successfully",
		OrderID:   orderID,
		PaymentID: paymentID,
		Booking:   booking,
	}, nil
}

// duplicateCallback returns the stored outcome when this payment was already recorded
func (s *PaymentService) duplicateCallback(ctx context.Context, req *models.VerifyPaymentRequest, meta *RequestMeta) (*models.VerifyPaymentResponse, bool) {
	session, err := s.sessions.GetByOrderID(ctx, req.RazorpayOrderID)
	if err != nil || session.Status != models.CheckoutPaid {
		return nil, false
	}
	if session.PaymentID == nil || *session.PaymentID != req.RazorpayPaymentID {
		return nil, false
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventDuplicateCallback, models.PaymentSourceCheckout).
		SetBooking(req.BookingID).
		SetOrder(req.RazorpayOrderID).
		SetPayment(req.RazorpayPaymentID), meta)

	resp := &models.VerifyPaymentResponse{
		Success:   true,
		Message:   "Payment already verified",
		OrderID:   req.RazorpayOrderID,
		PaymentID: req.RazorpayPaymentID,
	}
	if booking, err := s.backend.GetBooking(ctx, req.BookingID); err == nil {
		resp.Booking = booking
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   req.RazorpayOrderID,
		"payment_id": req.RazorpayPaymentID,
	}).Info("Duplicate payment verification; booking not patched again")
	return resp, true
}

// recordUnrecorded handles a captured payment the backend refused to record
func (s *PaymentService) recordUnrecorded(ctx context.Context, req *models.VerifyPaymentRequest, cause error, start time.Time, meta *RequestMeta) error {
	orderID, paymentID := req.RazorpayOrderID, req.RazorpayPaymentID

	s.logger.WithError(cause).WithFields(logrus.Fields{
		"booking_id": req.BookingID,
		"order_id":   orderID,
		"payment_id": paymentID,
		"amount":     req.Amount,
	}).Error("CRITICAL: Payment verified but booking not updated")

	lastError := cause.Error()
	entry := &models.ReconciliationEntry{
		BookingID:      req.BookingID,
		GatewayOrderID: orderID,
		PaymentID:      paymentID,
		AmountCents:    req.Amount,
		LastError:      &lastError,
	}
	if err := s.queue.Enqueue(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Error("Failed to enqueue payment reconciliation")
	}

	s.updateSession(ctx, orderID, models.CheckoutUnrecorded, &paymentID, &lastError)

	audit := models.NewPaymentAudit(models.PaymentEventBookingUpdateFailed, models.PaymentSourceBackend).
		SetBooking(req.BookingID).
		SetOrder(orderID).
		SetPayment(paymentID).
		SetAmount(req.Amount, "").
		SetError(lastError, "payment_verified_not_recorded").
		SetProcessingTime(start)
	var statusErr *BackendStatusError
	if errors.As(cause, &statusErr) {
		audit.SetHTTPStatus(statusErr.StatusCode)
	}
	s.audit.Record(ctx, audit, meta)

	return &models.BackendReconciliationError{
		BookingID: req.BookingID,
		OrderID:   orderID,
		PaymentID: paymentID,
		Cause:     cause,
	}
}

// MarkDismissed records that the guest closed the hosted checkout without paying
func (s *PaymentService) MarkDismissed(ctx context.Context, orderID string, meta *RequestMeta) error {
	session, err := s.sessions.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	updated, err := s.sessions.UpdateStatus(ctx, orderID, models.CheckoutCancelled, nil, nil)
	if err != nil {
		return err
	}

	audit := models.NewPaymentAudit(models.PaymentEventCheckoutDismissed, models.PaymentSourceCheckout).
		SetBookingRef(session.BookingRef).
		SetOrder(orderID)
	if session.BookingID != nil {
		audit.SetBooking(*session.BookingID)
	}
	s.audit.Record(ctx, audit, meta)

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"updated":  updated,
	}).Info("Checkout dismissed")
	return nil
}

// PaymentDetailsFor rebuilds display details for a booking's paid checkout session
func (s *PaymentService) PaymentDetailsFor(ctx context.Context, bookingID int64, orderID string) (*models.PaymentDetails, error) {
	session, err := s.sessions.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if session.BookingID != nil && *session.BookingID != bookingID {
		return nil, models.ErrNotFound
	}
	details := &models.PaymentDetails{
		OrderID:  session.GatewayOrderID,
		Amount:   session.AmountCents,
		Currency: session.Currency,
		Status:   string(session.Status),
	}
	if session.PaymentID != nil {
		details.PaymentID = *session.PaymentID
	}
	return details, nil
}

// ListSessions returns checkout sessions for the operator API
func (s *PaymentService) ListSessions(ctx context.Context, status models.CheckoutSessionStatus, limit int) ([]*models.CheckoutSession, error) {
	return s.sessions.List(ctx, status, limit)
}

// ExpireStaleSessions abandons checkout sessions nobody completed within ttl.
// The backend booking stays pending; its owner decides whether to cancel it.
func (s *PaymentService) ExpireStaleSessions(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	expired, err := s.sessions.ExpireStale(ctx, time.Now().Add(-ttl), limit)
	if err != nil {
		return 0, err
	}
	for _, session := range expired {
		audit := models.NewPaymentAudit(models.PaymentEventCheckoutAbandoned, models.PaymentSourceSystem).
			SetBookingRef(session.BookingRef).
			SetOrder(session.GatewayOrderID).
			SetAmount(session.AmountCents, session.Currency)
		fields := logrus.Fields{
			"order_id":          session.GatewayOrderID,
			"booking_reference": session.BookingRef,
			"age":               time.Since(session.CreatedAt).Round(time.Minute).String(),
		}
		if session.BookingID != nil {
			audit.SetBooking(*session.BookingID)
			fields["booking_id"] = *session.BookingID
		}
		s.audit.Record(ctx, audit, nil)
		s.logger.WithFields(fields).Info("Checkout session abandoned; booking left pending")
	}
	return len(expired), nil
}

func (s *PaymentService) updateSession(ctx context.Context, orderID string, status models.CheckoutSessionStatus, paymentID, lastError *string) {
	if _, err := s.sessions.UpdateStatus(ctx, orderID, status, paymentID, lastError); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": orderID,
			"status":   status,
		}).Warn("Failed to update checkout session")
	}
}

func bookingIDFromNotes(notes map[string]string) *int64 {
	raw, ok := notes["booking_id"]
	if !ok {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func errorCode(err error) string {
	if apiErr, ok := models.AsAPIError(err); ok {
		return apiErr.Code()
	}
	return ""
}
