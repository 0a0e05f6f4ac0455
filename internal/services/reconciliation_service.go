package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
)

// ReconciliationService retries and closes payments that were captured but not recorded
type ReconciliationService struct {
	queue       ReconciliationQueue
	backend     ReservationBackend
	sessions    SessionStore
	audit       *AuditRecorder
	maxAttempts int
	logger      *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(queue ReconciliationQueue, backend ReservationBackend, sessions SessionStore, audit *AuditRecorder, maxAttempts int, logger *logrus.Logger) *ReconciliationService {
	return &ReconciliationService{
		queue:       queue,
		backend:     backend,
		sessions:    sessions,
		audit:       audit,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// List returns queue entries with the given status
func (s *ReconciliationService) List(ctx context.Context, status models.ReconciliationStatus, limit int) ([]*models.ReconciliationEntry, error) {
	if status == "" {
		status = models.ReconciliationPending
	}
	return s.queue.ListByStatus(ctx, status, limit)
}

// RetryDue replays the backend update for every pending entry with attempts left
func (s *ReconciliationService) RetryDue(ctx context.Context, limit int) (resolved, failed int, err error) {
	entries, err := s.queue.ListDue(ctx, s.maxAttempts, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, entry := range entries {
		if err := s.retry(ctx, entry, "system"); err != nil {
			failed++
			continue
		}
		resolved++
	}
	return resolved, failed, nil
}

// Retry replays one entry on operator request
func (s *ReconciliationService) Retry(ctx context.Context, id uuid.UUID, actor string) (*models.ReconciliationEntry, error) {
	entry, err := s.queue.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status == models.ReconciliationResolved {
		return entry, nil
	}
	if err := s.retry(ctx, entry, actor); err != nil {
		return nil, err
	}
	return s.queue.GetByID(ctx, id)
}

// Resolve closes an entry an operator settled outside this service
func (s *ReconciliationService) Resolve(ctx context.Context, id uuid.UUID, actor string) error {
	entry, err := s.queue.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.queue.MarkResolved(ctx, id, actor); err != nil {
		return err
	}

	audit := models.NewPaymentAudit(models.PaymentEventReconciled, models.PaymentSourceOperator).
		SetBooking(entry.BookingID).
		SetOrder(entry.GatewayOrderID).
		SetPayment(entry.PaymentID).
		SetAmount(entry.AmountCents, "")
	audit.SetResponsePayload(map[string]interface{}{"resolved_by": actor, "manual": true})
	s.audit.Record(ctx, audit, nil)

	s.logger.WithFields(logrus.Fields{
		"reconciliation_id": id,
		"payment_id":        entry.PaymentID,
		"resolved_by":       actor,
	}).Info("Reconciliation resolved manually")
	return nil
}

func (s *ReconciliationService) retry(ctx context.Context, entry *models.ReconciliationEntry, actor string) error {
	patch := entry.PaymentPatch()
	booking, err := s.backend.PatchPayment(ctx, entry.BookingID, &patch)
	if err != nil {
		if recErr := s.queue.RecordFailure(ctx, entry.ID, err.Error(), s.maxAttempts); recErr != nil {
			s.logger.WithError(recErr).WithField("reconciliation_id", entry.ID).Error("Failed to record reconciliation attempt")
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"reconciliation_id": entry.ID,
			"booking_id":        entry.BookingID,
			"payment_id":        entry.PaymentID,
			"attempt":           entry.Attempts + 1,
		}).Warn("Reconciliation attempt failed")
		return &models.BackendReconciliationError{
			BookingID: entry.BookingID,
			OrderID:   entry.GatewayOrderID,
			PaymentID: entry.PaymentID,
			Cause:     err,
		}
	}

	if err := s.queue.MarkResolved(ctx, entry.ID, actor); err != nil {
		return fmt.Errorf("booking %d updated but reconciliation not closed: %w", entry.BookingID, err)
	}

	paymentID := entry.PaymentID
	if _, err := s.sessions.UpdateStatus(ctx, entry.GatewayOrderID, models.CheckoutPaid, &paymentID, nil); err != nil {
		s.logger.WithError(err).WithField("order_id", entry.GatewayOrderID).Warn("Failed to mark checkout session paid")
	}

	s.audit.Record(ctx, models.NewPaymentAudit(models.PaymentEventReconciled, models.PaymentSourceBackend).
		SetBooking(entry.BookingID).
		SetBookingRef(booking.ReferenceCode).
		SetOrder(entry.GatewayOrderID).
		SetPayment(entry.PaymentID).
		SetAmount(entry.AmountCents, booking.Currency), nil)

	s.logger.WithFields(logrus.Fields{
		"reconciliation_id": entry.ID,
		"booking_id":        entry.BookingID,
		"payment_id":        entry.PaymentID,
		"resolved_by":       actor,
	}).Info("Payment reconciled with backend")
	return nil
}
