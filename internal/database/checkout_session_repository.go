package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/staywell/booking-funnel/internal/models"
)

// CheckoutSessionRepository tracks hosted-checkout attempts
type CheckoutSessionRepository struct {
	db *sqlx.DB
}

// NewCheckoutSessionRepository creates a new checkout session repository
func NewCheckoutSessionRepository(db *sqlx.DB) *CheckoutSessionRepository {
	return &CheckoutSessionRepository{db: db}
}

const checkoutSessionColumns = `id, gateway_order_id, booking_reference, booking_id, amount_cents, currency,
	status, payment_id, last_error, created_at, updated_at`

// Create inserts a session; a second session for the same order is ignored
func (r *CheckoutSessionRepository) Create(ctx context.Context, s *models.CheckoutSession) error {
	query := `
		INSERT INTO checkout_sessions (` + checkoutSessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (gateway_order_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.GatewayOrderID, s.BookingRef, s.BookingID, s.AmountCents, s.Currency,
		s.Status, s.PaymentID, s.LastError, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	return nil
}

// GetByOrderID returns the session for a gateway order
func (r *CheckoutSessionRepository) GetByOrderID(ctx context.Context, orderID string) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	query := `SELECT ` + checkoutSessionColumns + ` FROM checkout_sessions WHERE gateway_order_id = $1`

	err := r.db.GetContext(ctx, &s, query, orderID)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	return &s, nil
}

// UpdateStatus moves a session to a new status. Terminal sessions (paid, abandoned)
// are never changed; the returned bool reports whether a row was updated.
func (r *CheckoutSessionRepository) UpdateStatus(ctx context.Context, orderID string, status models.CheckoutSessionStatus, paymentID, lastError *string) (bool, error) {
	query := `
		UPDATE checkout_sessions
		SET status = $1,
		    payment_id = COALESCE($2, payment_id),
		    last_error = $3,
		    updated_at = NOW()
		WHERE gateway_order_id = $4
		  AND status NOT IN ($5, $6)`

	result, err := r.db.ExecContext(ctx, query, status, paymentID, lastError, orderID, models.CheckoutPaid, models.CheckoutAbandoned)
	if err != nil {
		return false, fmt.Errorf("failed to update checkout session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update checkout session: %w", err)
	}
	return rows > 0, nil
}

// Reopen moves a cancelled or abandoned session back to awaiting_payment when its
// order is handed out again. Paid sessions are never reopened.
func (r *CheckoutSessionRepository) Reopen(ctx context.Context, orderID string) (bool, error) {
	query := `
		UPDATE checkout_sessions
		SET status = $1, last_error = NULL, updated_at = NOW()
		WHERE gateway_order_id = $2
		  AND status IN ($3, $4)`

	result, err := r.db.ExecContext(ctx, query, models.CheckoutAwaitingPayment, orderID, models.CheckoutCancelled, models.CheckoutAbandoned)
	if err != nil {
		return false, fmt.Errorf("failed to reopen checkout session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to reopen checkout session: %w", err)
	}
	return rows > 0, nil
}

// List returns sessions, optionally filtered by status, newest first
func (r *CheckoutSessionRepository) List(ctx context.Context, status models.CheckoutSessionStatus, limit int) ([]*models.CheckoutSession, error) {
	sessions := []*models.CheckoutSession{}
	var err error
	if status == "" {
		query := `SELECT ` + checkoutSessionColumns + ` FROM checkout_sessions ORDER BY created_at DESC LIMIT $1`
		err = r.db.SelectContext(ctx, &sessions, query, limit)
	} else {
		query := `SELECT ` + checkoutSessionColumns + ` FROM checkout_sessions WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		err = r.db.SelectContext(ctx, &sessions, query, status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout sessions: %w", err)
	}
	return sessions, nil
}

// ExpireStale marks awaiting_payment sessions untouched since the cutoff as abandoned
// and returns the sessions that were changed.
func (r *CheckoutSessionRepository) ExpireStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.CheckoutSession, error) {
	expired := []*models.CheckoutSession{}
	query := `
		UPDATE checkout_sessions
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM checkout_sessions
			WHERE status = $2 AND updated_at < $3
			ORDER BY updated_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + checkoutSessionColumns

	if err := r.db.SelectContext(ctx, &expired, query, models.CheckoutAbandoned, models.CheckoutAwaitingPayment, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to expire checkout sessions: %w", err)
	}
	return expired, nil
}
