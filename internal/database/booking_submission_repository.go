package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/staywell/booking-funnel/internal/models"
)

// BookingSubmissionRepository stores idempotency records for booking submissions
type BookingSubmissionRepository struct {
	db *sqlx.DB
}

// NewBookingSubmissionRepository creates a new booking submission repository
func NewBookingSubmissionRepository(db *sqlx.DB) *BookingSubmissionRepository {
	return &BookingSubmissionRepository{db: db}
}

// ErrDuplicateKey is returned when a row with the same unique key already exists
var ErrDuplicateKey = errors.New("duplicate key")

// Begin inserts an in-flight submission for the key.
// Returns ErrDuplicateKey if another request already claimed it.
func (r *BookingSubmissionRepository) Begin(ctx context.Context, key, requestHash string) (*models.BookingSubmission, error) {
	now := time.Now()
	sub := &models.BookingSubmission{
		ID:             uuid.New(),
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Status:         models.SubmissionInFlight,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	query := `
		INSERT INTO booking_submissions (id, idempotency_key, request_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.IdempotencyKey, sub.RequestHash, sub.Status, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to insert booking submission: %w", err)
	}
	return sub, nil
}

// GetByKey returns the submission for an idempotency key
func (r *BookingSubmissionRepository) GetByKey(ctx context.Context, key string) (*models.BookingSubmission, error) {
	var sub models.BookingSubmission
	query := `
		SELECT id, idempotency_key, request_hash, status, booking_id, reference_code,
		       response, error_message, created_at, updated_at
		FROM booking_submissions
		WHERE idempotency_key = $1`

	err := r.db.GetContext(ctx, &sub, query, key)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking submission: %w", err)
	}
	return &sub, nil
}

// Complete stores the created booking on the submission
func (r *BookingSubmissionRepository) Complete(ctx context.Context, id uuid.UUID, booking *models.Booking) error {
	response, err := models.ToJSONB(booking)
	if err != nil {
		return fmt.Errorf("failed to encode booking: %w", err)
	}

	query := `
		UPDATE booking_submissions
		SET status = $1, booking_id = $2, reference_code = $3, response = $4, updated_at = NOW()
		WHERE id = $5`

	if _, err := r.db.ExecContext(ctx, query, models.SubmissionCompleted, booking.ID, booking.ReferenceCode, response, id); err != nil {
		return fmt.Errorf("failed to complete booking submission: %w", err)
	}
	return nil
}

// Fail marks the submission failed so the key can be retried
func (r *BookingSubmissionRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE booking_submissions
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3`

	if _, err := r.db.ExecContext(ctx, query, models.SubmissionFailed, message, id); err != nil {
		return fmt.Errorf("failed to mark booking submission failed: %w", err)
	}
	return nil
}

// Restart moves a failed submission back to in-flight for a new attempt with the same key
func (r *BookingSubmissionRepository) Restart(ctx context.Context, id uuid.UUID, requestHash string) (bool, error) {
	query := `
		UPDATE booking_submissions
		SET status = $1, request_hash = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, models.SubmissionInFlight, requestHash, id, models.SubmissionFailed)
	if err != nil {
		return false, fmt.Errorf("failed to restart booking submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to restart booking submission: %w", err)
	}
	return rows == 1, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
