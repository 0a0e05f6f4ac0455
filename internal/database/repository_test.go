package database

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staywell/booking-funnel/internal/models"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestBookingSubmissionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Begin inserts in-flight row", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewBookingSubmissionRepository(db)

		mock.ExpectExec(`INSERT INTO booking_submissions`).
			WithArgs(sqlmock.AnyArg(), "key-1", "hash", models.SubmissionInFlight, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		sub, err := repo.Begin(ctx, "key-1", "hash")
		require.NoError(t, err)
		assert.Equal(t, models.SubmissionInFlight, sub.Status)
		assert.NotEqual(t, uuid.Nil, sub.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Begin with claimed key", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewBookingSubmissionRepository(db)

		mock.ExpectExec(`INSERT INTO booking_submissions`).
			WillReturnError(&pq.Error{Code: "23505"})

		sub, err := repo.Begin(ctx, "key-1", "hash")
		assert.ErrorIs(t, err, ErrDuplicateKey)
		assert.Nil(t, sub)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetByKey decodes stored response", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewBookingSubmissionRepository(db)
		id := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT .+ FROM booking_submissions`).
			WithArgs("key-1").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "idempotency_key", "request_hash", "status", "booking_id", "reference_code",
				"response", "error_message", "created_at", "updated_at",
			}).AddRow(
				id.String(), "key-1", "hash", "completed", int64(42), "HB-42",
				[]byte(`{"id":42,"referenceCode":"HB-42","totalAmountCents":520000}`), nil, now, now,
			))

		sub, err := repo.GetByKey(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, models.SubmissionCompleted, sub.Status)
		require.NotNil(t, sub.BookingID)
		assert.Equal(t, int64(42), *sub.BookingID)

		var booking models.Booking
		require.NoError(t, sub.Response.Decode(&booking))
		assert.Equal(t, int64(520000), booking.TotalAmountCents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetByKey not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewBookingSubmissionRepository(db)

		mock.ExpectQuery(`SELECT .+ FROM booking_submissions`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetByKey(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Restart only touches failed rows", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewBookingSubmissionRepository(db)
		id := uuid.New()

		mock.ExpectExec(`UPDATE booking_submissions`).
			WithArgs(models.SubmissionInFlight, "hash-2", id, models.SubmissionFailed).
			WillReturnResult(sqlmock.NewResult(0, 0))

		restarted, err := repo.Restart(ctx, id, "hash-2")
		require.NoError(t, err)
		assert.False(t, restarted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentOrderRepository(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "gateway_order_id", "receipt", "booking_id", "amount_cents", "currency", "gateway_status", "notes", "created_at"}

	t.Run("GetByReceipt", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPaymentOrderRepository(db)

		mock.ExpectQuery(`SELECT .+ FROM payment_orders WHERE receipt = \$1`).
			WithArgs("HB-42").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				uuid.New().String(), "order_Abc123", "HB-42", int64(42), int64(520000), "INR", "created",
				[]byte(`{"booking_id":"42"}`), time.Now(),
			))

		rec, err := repo.GetByReceipt(ctx, "HB-42")
		require.NoError(t, err)
		order := rec.ToPaymentOrder()
		assert.Equal(t, "order_Abc123", order.ID)
		assert.Equal(t, "HB-42", order.Receipt)
		assert.Equal(t, int64(520000), order.Amount)
		assert.Equal(t, "42", order.Notes["booking_id"])
	})

	t.Run("GetByReceipt not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPaymentOrderRepository(db)

		mock.ExpectQuery(`SELECT .+ FROM payment_orders`).
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.GetByReceipt(ctx, "HB-1")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("Create duplicate receipt", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPaymentOrderRepository(db)

		mock.ExpectExec(`INSERT INTO payment_orders`).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, &models.PaymentOrderRecord{ID: uuid.New(), Receipt: "HB-42"})
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})
}

func TestCheckoutSessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("UpdateStatus skips terminal sessions", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewCheckoutSessionRepository(db)
		paymentID := "pay_1"

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE checkout_sessions`)).
			WithArgs(models.CheckoutVerificationFailed, &paymentID, nil, "order_1", models.CheckoutPaid, models.CheckoutAbandoned).
			WillReturnResult(sqlmock.NewResult(0, 0))

		updated, err := repo.UpdateStatus(ctx, "order_1", models.CheckoutVerificationFailed, &paymentID, nil)
		require.NoError(t, err)
		assert.False(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Reopen revives abandoned sessions only", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewCheckoutSessionRepository(db)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE checkout_sessions`)).
			WithArgs(models.CheckoutAwaitingPayment, "order_1", models.CheckoutCancelled, models.CheckoutAbandoned).
			WillReturnResult(sqlmock.NewResult(0, 1))

		reopened, err := repo.Reopen(ctx, "order_1")
		require.NoError(t, err)
		assert.True(t, reopened)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ExpireStale returns abandoned sessions", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewCheckoutSessionRepository(db)
		cutoff := time.Now().Add(-time.Hour)
		now := time.Now()

		mock.ExpectQuery(`UPDATE checkout_sessions`).
			WithArgs(models.CheckoutAbandoned, models.CheckoutAwaitingPayment, cutoff, 50).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "gateway_order_id", "booking_reference", "booking_id", "amount_cents", "currency",
				"status", "payment_id", "last_error", "created_at", "updated_at",
			}).AddRow(uuid.New().String(), "order_1", "HB-1", int64(1), int64(1000), "INR", "abandoned", nil, nil, now, now))

		expired, err := repo.ExpireStale(ctx, cutoff, 50)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, models.CheckoutAbandoned, expired[0].Status)
		assert.Equal(t, "HB-1", expired[0].BookingRef)
	})
}

func TestReconciliationRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Enqueue defaults to pending", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewReconciliationRepository(db)

		mock.ExpectExec(`INSERT INTO payment_reconciliations`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		entry := &models.ReconciliationEntry{BookingID: 42, GatewayOrderID: "order_1", PaymentID: "pay_1", AmountCents: 520000}
		require.NoError(t, repo.Enqueue(ctx, entry))
		assert.Equal(t, models.ReconciliationPending, entry.Status)
		assert.NotEqual(t, uuid.Nil, entry.ID)
	})

	t.Run("MarkResolved unknown id", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewReconciliationRepository(db)
		id := uuid.New()

		mock.ExpectExec(`UPDATE payment_reconciliations`).
			WithArgs(models.ReconciliationResolved, "operator", id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.MarkResolved(ctx, id, "operator"), models.ErrNotFound)
	})

	t.Run("RecordFailure database error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewReconciliationRepository(db)

		mock.ExpectExec(`UPDATE payment_reconciliations`).
			WillReturnError(fmt.Errorf("connection reset"))

		err := repo.RecordFailure(ctx, uuid.New(), "backend 500", 10)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to record reconciliation failure")
	})
}

func TestPaymentAuditRepository_Log(t *testing.T) {
	db, mock := setupMockDB(t)
	logger := logrus.New()
	repo := NewPaymentAuditRepository(db, logger)

	audit := models.NewPaymentAudit(models.PaymentEventSignatureMismatch, models.PaymentSourceCheckout).
		SetOrder("order_1").
		SetPayment("pay_1").
		SetError("signature mismatch", "signature_mismatch")

	mock.ExpectExec(`INSERT INTO payment_audits`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Log(context.Background(), audit))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, repo.Log(context.Background(), nil))
}

func TestPaymentAuditRepository_Queries(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPaymentAuditRepository(db, logrus.New())
	ctx := context.Background()

	columns := []string{"id", "gateway_order_id", "event_type", "event_source", "amounts_match", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE gateway_order_id = $1`)).
		WithArgs("order_1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(uuid.New().String(), "order_1", "order_created", "razorpay_api", nil, time.Now()).
			AddRow(uuid.New().String(), "order_1", "booking_confirmed", "reservation_backend", true, time.Now()))

	audits, err := repo.GetByOrderID(ctx, "order_1")
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, models.PaymentEventBookingConfirmed, audits[1].EventType)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE amounts_match = FALSE`)).
		WithArgs(25).
		WillReturnError(fmt.Errorf("timeout"))

	_, err = repo.GetAmountMismatches(ctx, 25)
	assert.ErrorContains(t, err, "failed to get amount mismatches")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySchema(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS booking_submissions`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, ApplySchema(context.Background(), db))

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(fmt.Errorf("permission denied"))
	assert.ErrorContains(t, ApplySchema(context.Background(), db), "failed to apply schema")
	assert.NoError(t, mock.ExpectationsWereMet())

	for _, table := range FunnelTables {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
