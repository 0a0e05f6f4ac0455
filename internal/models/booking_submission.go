package models

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is the state of an idempotent booking submission
type SubmissionStatus string

const (
	SubmissionInFlight  SubmissionStatus = "in_flight"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// BookingSubmission maps an Idempotency-Key to the booking the backend created for it
type BookingSubmission struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	IdempotencyKey string           `json:"idempotency_key" db:"idempotency_key"`
	RequestHash    string           `json:"request_hash" db:"request_hash"`
	Status         SubmissionStatus `json:"status" db:"status"`
	BookingID      *int64           `json:"booking_id,omitempty" db:"booking_id"`
	ReferenceCode  *string          `json:"reference_code,omitempty" db:"reference_code"`
	Response       JSONB            `json:"response,omitempty" db:"response"`
	ErrorMessage   *string          `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}
