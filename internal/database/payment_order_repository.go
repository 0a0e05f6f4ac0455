package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/staywell/booking-funnel/internal/models"
)

// PaymentOrderRepository is the ledger of gateway orders, one per booking reference
type PaymentOrderRepository struct {
	db *sqlx.DB
}

// NewPaymentOrderRepository creates a new payment order repository
func NewPaymentOrderRepository(db *sqlx.DB) *PaymentOrderRepository {
	return &PaymentOrderRepository{db: db}
}

const paymentOrderColumns = `id, gateway_order_id, receipt, booking_id, amount_cents, currency, gateway_status, notes, created_at`

// Create stores a newly opened gateway order.
// Returns ErrDuplicateKey if the receipt already has an order.
func (r *PaymentOrderRepository) Create(ctx context.Context, rec *models.PaymentOrderRecord) error {
	query := `
		INSERT INTO payment_orders (` + paymentOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.GatewayOrderID, rec.Receipt, rec.BookingID,
		rec.AmountCents, rec.Currency, rec.GatewayStatus, rec.Notes, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create payment order: %w", err)
	}
	return nil
}

// GetByReceipt returns the order opened for a booking reference
func (r *PaymentOrderRepository) GetByReceipt(ctx context.Context, receipt string) (*models.PaymentOrderRecord, error) {
	return r.getOne(ctx, `SELECT `+paymentOrderColumns+` FROM payment_orders WHERE receipt = $1`, receipt)
}

// GetByGatewayOrderID returns the order with the given Razorpay order id
func (r *PaymentOrderRepository) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.PaymentOrderRecord, error) {
	return r.getOne(ctx, `SELECT `+paymentOrderColumns+` FROM payment_orders WHERE gateway_order_id = $1`, orderID)
}

func (r *PaymentOrderRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.PaymentOrderRecord, error) {
	var rec models.PaymentOrderRecord
	err := r.db.GetContext(ctx, &rec, query, arg)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	return &rec, nil
}

// UpdateStatus records the latest known gateway status (created, attempted, paid)
func (r *PaymentOrderRepository) UpdateStatus(ctx context.Context, orderID, status string) error {
	query := `UPDATE payment_orders SET gateway_status = $1 WHERE gateway_order_id = $2`
	if _, err := r.db.ExecContext(ctx, query, status, orderID); err != nil {
		return fmt.Errorf("failed to update payment order status: %w", err)
	}
	return nil
}
