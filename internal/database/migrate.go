package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// FunnelTables lists the tables this service owns, in dependency-free order
var FunnelTables = []string{
	"booking_submissions",
	"payment_orders",
	"checkout_sessions",
	"payment_reconciliations",
	"payment_audits",
	"request_rate_limits",
}

// ApplySchema creates the funnel tables and indexes if they do not exist
func ApplySchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
