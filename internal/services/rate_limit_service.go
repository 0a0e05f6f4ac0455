package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/staywell/booking-funnel/internal/config"
	"github.com/staywell/booking-funnel/internal/models"
)

// Rate limit scopes
const (
	ScopeBooking = "booking"
	ScopeOrder   = "payment order"
)

// RateLimitService counts public write requests per client IP in the database,
// so limits hold across every API instance.
type RateLimitService struct {
	db  *sqlx.DB
	cfg config.RateLimitConfig
	now func() time.Time
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db *sqlx.DB, cfg config.RateLimitConfig) *RateLimitService {
	return &RateLimitService{
		db:  db,
		cfg: cfg,
		now: time.Now,
	}
}

// Allow checks the limit for scope and records the request when it is under the limit
func (s *RateLimitService) Allow(ctx context.Context, scope, ip string) error {
	if ip == "" {
		return nil
	}
	if err := s.Check(ctx, scope, ip); err != nil {
		return err
	}
	return s.Record(ctx, scope, ip)
}

// Check returns a *models.RateLimitError when ip has used up its requests for scope
func (s *RateLimitService) Check(ctx context.Context, scope, ip string) error {
	count, lastRequest, err := s.getRequestCount(ctx, scope, ip)
	if err != nil {
		return fmt.Errorf("failed to check %s rate limit: %w", scope, err)
	}

	if count >= s.limitFor(scope) {
		return &models.RateLimitError{
			Scope:      scope,
			RetryAfter: lastRequest.Add(s.cfg.Window),
		}
	}
	return nil
}

// Record stores one request for scope
func (s *RateLimitService) Record(ctx context.Context, scope, ip string) error {
	query := `
		INSERT INTO request_rate_limits (identifier, scope, created_at)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, ip, scope, s.now()); err != nil {
		return fmt.Errorf("failed to record %s request: %w", scope, err)
	}
	return nil
}

// CleanupExpired removes records older than the window
func (s *RateLimitService) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM request_rate_limits WHERE created_at < $1`

	result, err := s.db.ExecContext(ctx, query, s.now().Add(-s.cfg.Window))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

func (s *RateLimitService) getRequestCount(ctx context.Context, scope, ip string) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM request_rate_limits
		WHERE identifier = $1
		  AND scope = $2
		  AND created_at > $3`

	var count int
	var lastRequest time.Time
	err := s.db.QueryRowContext(ctx, query, ip, scope, s.now().Add(-s.cfg.Window)).Scan(&count, &lastRequest)
	if err != nil {
		return 0, time.Time{}, err
	}
	return count, lastRequest, nil
}

func (s *RateLimitService) limitFor(scope string) int {
	if scope == ScopeOrder {
		return s.cfg.OrdersPerIP
	}
	return s.cfg.BookingsPerIP
}
