package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/staywell/booking-funnel/internal/models"
)

// ReconciliationRepository queues payments the gateway captured but the backend never recorded
type ReconciliationRepository struct {
	db *sqlx.DB
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(db *sqlx.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

const reconciliationColumns = `id, booking_id, gateway_order_id, payment_id, amount_cents, status,
	attempts, last_error, resolved_by, created_at, updated_at`

// Enqueue adds an entry; re-enqueuing the same payment keeps the existing row
func (r *ReconciliationRepository) Enqueue(ctx context.Context, e *models.ReconciliationEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = models.ReconciliationPending
	}

	query := `
		INSERT INTO payment_reconciliations (` + reconciliationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (payment_id) DO UPDATE
		SET last_error = EXCLUDED.last_error, updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.BookingID, e.GatewayOrderID, e.PaymentID, e.AmountCents, e.Status,
		e.Attempts, e.LastError, e.ResolvedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue reconciliation: %w", err)
	}
	return nil
}

// GetByID returns one queue entry
func (r *ReconciliationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationEntry, error) {
	var e models.ReconciliationEntry
	query := `SELECT ` + reconciliationColumns + ` FROM payment_reconciliations WHERE id = $1`

	err := r.db.GetContext(ctx, &e, query, id)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	return &e, nil
}

// ListByStatus returns entries with the given status, oldest first
func (r *ReconciliationRepository) ListByStatus(ctx context.Context, status models.ReconciliationStatus, limit int) ([]*models.ReconciliationEntry, error) {
	entries := []*models.ReconciliationEntry{}
	query := `
		SELECT ` + reconciliationColumns + `
		FROM payment_reconciliations
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &entries, query, status, limit); err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}
	return entries, nil
}

// ListDue returns pending entries that still have retry attempts left
func (r *ReconciliationRepository) ListDue(ctx context.Context, maxAttempts, limit int) ([]*models.ReconciliationEntry, error) {
	entries := []*models.ReconciliationEntry{}
	query := `
		SELECT ` + reconciliationColumns + `
		FROM payment_reconciliations
		WHERE status = $1 AND attempts < $2
		ORDER BY updated_at ASC
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &entries, query, models.ReconciliationPending, maxAttempts, limit); err != nil {
		return nil, fmt.Errorf("failed to list due reconciliations: %w", err)
	}
	return entries, nil
}

// MarkResolved closes an entry
func (r *ReconciliationRepository) MarkResolved(ctx context.Context, id uuid.UUID, resolvedBy string) error {
	query := `
		UPDATE payment_reconciliations
		SET status = $1, resolved_by = $2, last_error = NULL, updated_at = NOW()
		WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, models.ReconciliationResolved, resolvedBy, id)
	if err != nil {
		return fmt.Errorf("failed to resolve reconciliation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to resolve reconciliation: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordFailure increments attempts and moves the entry to failed once maxAttempts is reached
func (r *ReconciliationRepository) RecordFailure(ctx context.Context, id uuid.UUID, lastError string, maxAttempts int) error {
	query := `
		UPDATE payment_reconciliations
		SET attempts = attempts + 1,
		    last_error = $1,
		    status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END,
		    updated_at = NOW()
		WHERE id = $4`

	if _, err := r.db.ExecContext(ctx, query, lastError, maxAttempts, models.ReconciliationFailed, id); err != nil {
		return fmt.Errorf("failed to record reconciliation failure: %w", err)
	}
	return nil
}
