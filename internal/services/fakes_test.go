package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/staywell/booking-funnel/internal/config"
	"github.com/staywell/booking-funnel/internal/database"
	"github.com/staywell/booking-funnel/internal/models"
)

const testSecret = "test_secret_key"

func newTestLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

// fakeBackendServer stands in for the reservation backend
type fakeBackendServer struct {
	*httptest.Server
	mu           sync.Mutex
	creates      int32
	patches      int32
	patchStatus  int
	createStatus int
	lastCreate   models.CreateBookingPayload
	lastPatch    models.BookingPaymentPatch
	booking      models.Booking
}

func newFakeBackend(t *testing.T) *fakeBackendServer {
	f := &fakeBackendServer{
		patchStatus:  http.StatusOK,
		createStatus: http.StatusCreated,
		booking: models.Booking{
			ID:               42,
			ReferenceCode:    "HB-2026-0042",
			HotelID:          7,
			Status:           models.BookingStatusPending,
			PaymentStatus:    models.PaymentStatusUnpaid,
			Currency:         "INR",
			TotalAmountCents: 520000,
			BalanceDueCents:  520000,
		},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeBackendServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/bookings":
		atomic.AddInt32(&f.creates, 1)
		_ = json.NewDecoder(r.Body).Decode(&f.lastCreate)
		if f.createStatus >= 300 {
			w.WriteHeader(f.createStatus)
			_, _ = w.Write([]byte(`{"success":false,"message":"room no longer available"}`))
			return
		}
		f.booking.TotalAmountCents = f.lastCreate.TotalAmountCents
		f.booking.TaxAmountCents = f.lastCreate.TaxAmountCents
		f.booking.BalanceDueCents = f.lastCreate.TotalAmountCents
		w.WriteHeader(f.createStatus)
		writeBooking(w, f.booking)
	case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/payment"):
		atomic.AddInt32(&f.patches, 1)
		_ = json.NewDecoder(r.Body).Decode(&f.lastPatch)
		if f.patchStatus >= 300 {
			w.WriteHeader(f.patchStatus)
			_, _ = w.Write([]byte(`{"success":false,"message":"database unavailable"}`))
			return
		}
		f.booking.AmountPaidCents = f.lastPatch.AmountPaidCents
		f.booking.BalanceDueCents = f.booking.TotalAmountCents - f.lastPatch.AmountPaidCents
		f.booking.PaymentStatus = f.lastPatch.PaymentStatus
		f.booking.PaymentMethod = f.lastPatch.PaymentMethod
		f.booking.PaymentProcessor = f.lastPatch.PaymentProcessor
		f.booking.Status = models.BookingStatusConfirmed
		writeBooking(w, f.booking)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/bookings/"):
		if r.URL.Path != "/api/bookings/42" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"message":"booking not found"}`))
			return
		}
		writeBooking(w, f.booking)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeBooking(w http.ResponseWriter, b models.Booking) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    map[string]interface{}{"booking": b},
	})
}

func (f *fakeBackendServer) patchCount() int  { return int(atomic.LoadInt32(&f.patches)) }
func (f *fakeBackendServer) createCount() int { return int(atomic.LoadInt32(&f.creates)) }

func (f *fakeBackendServer) client() *BackendClient {
	return NewBackendClient(&config.BackendConfig{BaseURL: f.URL, APIToken: "backend-token", Timeout: 5 * time.Second}, newTestLogger())
}

// fakeRazorpayServer stands in for the Razorpay Orders API
type fakeRazorpayServer struct {
	*httptest.Server
	orders int32
	status int
}

func newFakeRazorpay(t *testing.T) *fakeRazorpayServer {
	f := &fakeRazorpayServer{status: http.StatusOK}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != testSecret {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Authentication failed"}}`))
			return
		}
		if f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":{"code":"SERVER_ERROR","description":"gateway down"}}`))
			return
		}
		var req razorpayOrderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		n := atomic.AddInt32(&f.orders, 1)
		_ = json.NewEncoder(w).Encode(models.PaymentOrder{
			ID:        "order_test" + string(rune('A'+n-1)),
			Entity:    "order",
			Amount:    req.Amount,
			AmountDue: req.Amount,
			Currency:  req.Currency,
			Receipt:   req.Receipt,
			Status:    "created",
			Notes:     req.Notes,
			CreatedAt: time.Now().Unix(),
		})
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeRazorpayServer) orderCount() int { return int(atomic.LoadInt32(&f.orders)) }

func (f *fakeRazorpayServer) service(keyID, secret string) *RazorpayService {
	return NewRazorpayService(&config.PaymentConfig{
		KeyID:     keyID,
		KeySecret: secret,
		APIURL:    f.URL,
		Timeout:   5 * time.Second,
	}, newTestLogger())
}

// memSubmissions is an in-memory SubmissionStore
type memSubmissions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.BookingSubmission
}

func newMemSubmissions() *memSubmissions {
	return &memSubmissions{byID: map[uuid.UUID]*models.BookingSubmission{}}
}

func (m *memSubmissions) find(key string) *models.BookingSubmission {
	for _, s := range m.byID {
		if s.IdempotencyKey == key {
			return s
		}
	}
	return nil
}

func (m *memSubmissions) Begin(_ context.Context, key, hash string) (*models.BookingSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(key) != nil {
		return nil, database.ErrDuplicateKey
	}
	s := &models.BookingSubmission{ID: uuid.New(), IdempotencyKey: key, RequestHash: hash, Status: models.SubmissionInFlight}
	m.byID[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *memSubmissions) GetByKey(_ context.Context, key string) (*models.BookingSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.find(key)
	if s == nil {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubmissions) Complete(_ context.Context, id uuid.UUID, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, err := models.ToJSONB(booking)
	if err != nil {
		return err
	}
	m.byID[id].Status = models.SubmissionCompleted
	m.byID[id].Response = resp
	return nil
}

func (m *memSubmissions) Fail(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = models.SubmissionFailed
	m.byID[id].ErrorMessage = &message
	return nil
}

func (m *memSubmissions) Restart(_ context.Context, id uuid.UUID, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID[id]
	if s.Status != models.SubmissionFailed {
		return false, nil
	}
	s.Status = models.SubmissionInFlight
	s.RequestHash = hash
	return true, nil
}

// memLedger is an in-memory OrderLedger
type memLedger struct {
	mu      sync.Mutex
	records map[string]*models.PaymentOrderRecord
}

func newMemLedger() *memLedger {
	return &memLedger{records: map[string]*models.PaymentOrderRecord{}}
}

func (m *memLedger) Create(_ context.Context, rec *models.PaymentOrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Receipt]; ok {
		return database.ErrDuplicateKey
	}
	m.records[rec.Receipt] = rec
	return nil
}

func (m *memLedger) GetByReceipt(_ context.Context, receipt string) (*models.PaymentOrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[receipt]; ok {
		return rec, nil
	}
	return nil, models.ErrNotFound
}

func (m *memLedger) GetByGatewayOrderID(_ context.Context, orderID string) (*models.PaymentOrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.GatewayOrderID == orderID {
			return rec, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memLedger) UpdateStatus(_ context.Context, orderID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.GatewayOrderID == orderID {
			rec.GatewayStatus = status
		}
	}
	return nil
}

// memSessions is an in-memory SessionStore
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.CheckoutSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*models.CheckoutSession{}}
}

func (m *memSessions) Create(_ context.Context, s *models.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.GatewayOrderID]; !ok {
		m.sessions[s.GatewayOrderID] = s
	}
	return nil
}

func (m *memSessions) GetByOrderID(_ context.Context, orderID string) (*models.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) UpdateStatus(_ context.Context, orderID string, status models.CheckoutSessionStatus, paymentID, lastError *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[orderID]
	if !ok || s.Status.IsTerminal() {
		return false, nil
	}
	s.Status = status
	if paymentID != nil {
		s.PaymentID = paymentID
	}
	s.LastError = lastError
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *memSessions) Reopen(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[orderID]
	if !ok || (s.Status != models.CheckoutCancelled && s.Status != models.CheckoutAbandoned) {
		return false, nil
	}
	s.Status = models.CheckoutAwaitingPayment
	s.LastError = nil
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *memSessions) List(_ context.Context, status models.CheckoutSessionStatus, limit int) ([]*models.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.CheckoutSession{}
	for _, s := range m.sessions {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessions) ExpireStale(_ context.Context, cutoff time.Time, limit int) ([]*models.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.CheckoutSession{}
	for _, s := range m.sessions {
		if s.Status == models.CheckoutAwaitingPayment && s.UpdatedAt.Before(cutoff) && len(out) < limit {
			s.Status = models.CheckoutAbandoned
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessions) status(orderID string) models.CheckoutSessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[orderID]; ok {
		return s.Status
	}
	return ""
}

// memQueue is an in-memory ReconciliationQueue
type memQueue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.ReconciliationEntry
}

func newMemQueue() *memQueue {
	return &memQueue{entries: map[uuid.UUID]*models.ReconciliationEntry{}}
}

func (m *memQueue) Enqueue(_ context.Context, e *models.ReconciliationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = models.ReconciliationPending
	}
	m.entries[e.ID] = e
	return nil
}

func (m *memQueue) GetByID(_ context.Context, id uuid.UUID) (*models.ReconciliationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memQueue) ListByStatus(_ context.Context, status models.ReconciliationStatus, limit int) ([]*models.ReconciliationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.ReconciliationEntry{}
	for _, e := range m.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memQueue) ListDue(_ context.Context, maxAttempts, limit int) ([]*models.ReconciliationEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.ReconciliationEntry{}
	for _, e := range m.entries {
		if e.Status == models.ReconciliationPending && e.Attempts < maxAttempts {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memQueue) MarkResolved(_ context.Context, id uuid.UUID, resolvedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return models.ErrNotFound
	}
	e.Status = models.ReconciliationResolved
	e.ResolvedBy = &resolvedBy
	return nil
}

func (m *memQueue) RecordFailure(_ context.Context, id uuid.UUID, lastError string, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[id]
	e.Attempts++
	e.LastError = &lastError
	if e.Attempts >= maxAttempts {
		e.Status = models.ReconciliationFailed
	}
	return nil
}

func (m *memQueue) all() []*models.ReconciliationEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.ReconciliationEntry{}
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out
}

// memAudit records audit entries in memory
type memAudit struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
}

func (m *memAudit) Log(_ context.Context, a *models.PaymentAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, a)
	return nil
}

func (m *memAudit) events() []models.PaymentEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PaymentEventType, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.EventType)
	}
	return out
}
