package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/database"
	"github.com/staywell/booking-funnel/internal/models"
)

// BookingService validates drafts and creates pending bookings on the reservation backend
type BookingService struct {
	backend     ReservationBackend
	submissions SubmissionStore
	taxRateBP   int
	logger      *logrus.Logger
	now         func() time.Time
}

// NewBookingService creates a new booking service
func NewBookingService(backend ReservationBackend, submissions SubmissionStore, taxRateBP int, logger *logrus.Logger) *BookingService {
	return &BookingService{
		backend:     backend,
		submissions: submissions,
		taxRateBP:   taxRateBP,
		logger:      logger,
		now:         time.Now,
	}
}

// SubmitResult is the outcome of a booking submission
type SubmitResult struct {
	Booking  *models.Booking
	Replayed bool // true when an earlier submission with the same key was returned
}

// Submit validates the draft and creates exactly one pending booking per idempotency key.
// An empty key disables deduplication.
func (s *BookingService) Submit(ctx context.Context, draft *models.BookingDraft, idempotencyKey string) (*SubmitResult, error) {
	// the tax rate is server policy; whatever the client sent is overwritten
	draft.TaxRateBasisPoints = s.taxRateBP
	if err := models.ValidateDraft(draft, s.now()); err != nil {
		return nil, err
	}

	hash, err := requestHash(draft)
	if err != nil {
		return nil, err
	}

	var submission *models.BookingSubmission
	if idempotencyKey != "" {
		var replay *models.Booking
		submission, replay, err = s.claim(ctx, idempotencyKey, hash)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			s.logger.WithFields(logrus.Fields{
				"idempotency_key": idempotencyKey,
				"booking_id":      replay.ID,
			}).Info("Replaying completed booking submission")
			return &SubmitResult{Booking: replay, Replayed: true}, nil
		}
	}

	totals := draft.ComputeTotals()
	payload := buildBookingPayload(draft, totals, idempotencyKey)

	booking, err := s.backend.CreateBooking(ctx, payload)
	if err != nil {
		creationErr := toCreationError(err)
		if submission != nil {
			if failErr := s.submissions.Fail(ctx, submission.ID, creationErr.Message); failErr != nil {
				s.logger.WithError(failErr).Error("Failed to mark booking submission failed")
			}
		}
		s.logger.WithFields(logrus.Fields{
			"hotel_id":    draft.HotelID,
			"room_id":     draft.RoomID,
			"status_code": creationErr.StatusCode,
		}).WithError(err).Warn("Backend rejected booking")
		return nil, creationErr
	}

	if booking.TotalAmountCents != totals.TotalAmountCents {
		// the backend's figure is authoritative and is what gets charged
		s.logger.WithFields(logrus.Fields{
			"booking_id":    booking.ID,
			"draft_total":   totals.TotalAmountCents,
			"backend_total": booking.TotalAmountCents,
		}).Warn("Backend total differs from draft total")
	}

	if submission != nil {
		if err := s.submissions.Complete(ctx, submission.ID, booking); err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to store completed booking submission")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"reference_code": booking.ReferenceCode,
		"total_cents":    booking.TotalAmountCents,
		"currency":       booking.Currency,
	}).Info("Booking submitted")

	return &SubmitResult{Booking: booking}, nil
}

// claim reserves the idempotency key, or returns the booking an earlier request created with it
func (s *BookingService) claim(ctx context.Context, key, hash string) (*models.BookingSubmission, *models.Booking, error) {
	submission, err := s.submissions.Begin(ctx, key, hash)
	if err == nil {
		return submission, nil, nil
	}
	if !errors.Is(err, database.ErrDuplicateKey) {
		return nil, nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	existing, err := s.submissions.GetByKey(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load booking submission: %w", err)
	}

	if existing.RequestHash != hash {
		return nil, nil, &models.IdempotencyConflictError{Key: key}
	}

	switch existing.Status {
	case models.SubmissionCompleted:
		var booking models.Booking
		if err := existing.Response.Decode(&booking); err != nil {
			return nil, nil, fmt.Errorf("failed to decode stored booking: %w", err)
		}
		return nil, &booking, nil
	case models.SubmissionFailed:
		restarted, err := s.submissions.Restart(ctx, existing.ID, hash)
		if err != nil {
			return nil, nil, err
		}
		if !restarted {
			return nil, nil, models.ErrSubmissionInProgress
		}
		return existing, nil, nil
	default:
		return nil, nil, models.ErrSubmissionInProgress
	}
}

func buildBookingPayload(draft *models.BookingDraft, totals models.Totals, idempotencyKey string) *models.CreateBookingPayload {
	addOns := draft.AddOns
	if addOns == nil {
		addOns = []models.AddOn{}
	}
	return &models.CreateBookingPayload{
		HotelID: draft.HotelID,
		BookingDetails: models.BookingDetails{
			CheckIn:  draft.CheckIn.Format("2006-01-02"),
			CheckOut: draft.CheckOut.Format("2006-01-02"),
			Nights:   draft.Nights(),
			Adults:   draft.Adults,
			Children: draft.Children,
			Status:   models.BookingStatusPending,
		},
		CustomerData: draft.Guest,
		SelectedRooms: []models.SelectedRoom{{
			RoomID:      draft.RoomID,
			Name:        draft.RoomName,
			AmountCents: totals.RoomCents,
		}},
		SelectedAddOns:   addOns,
		Currency:         draft.Currency,
		PromoCode:        draft.PromoCode,
		PaidAmountCents:  0,
		TaxAmountCents:   totals.TaxAmountCents,
		TotalAmountCents: totals.TotalAmountCents,
		IdempotencyKey:   idempotencyKey,
	}
}

func toCreationError(err error) *models.BookingCreationError {
	var statusErr *BackendStatusError
	if errors.As(err, &statusErr) {
		return &models.BookingCreationError{StatusCode: statusErr.StatusCode, Message: statusErr.Message}
	}
	return &models.BookingCreationError{Message: err.Error()}
}

// requestHash fingerprints a draft so a reused key with different content is detected
func requestHash(draft *models.BookingDraft) (string, error) {
	raw, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("failed to hash booking draft: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
