package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventOrderCreated        PaymentEventType = "order_created"
	PaymentEventOrderReused         PaymentEventType = "order_reused"
	PaymentEventOrderFailed         PaymentEventType = "order_failed"
	PaymentEventCallbackReceived    PaymentEventType = "callback_received"
	PaymentEventSignatureMismatch   PaymentEventType = "signature_mismatch"
	PaymentEventBookingConfirmed    PaymentEventType = "booking_confirmed"
	PaymentEventBookingUpdateFailed PaymentEventType = "booking_update_failed"
	PaymentEventDuplicateCallback   PaymentEventType = "duplicate_callback"
	PaymentEventCheckoutDismissed   PaymentEventType = "checkout_dismissed"
	PaymentEventCheckoutAbandoned   PaymentEventType = "checkout_abandoned"
	PaymentEventReconciled          PaymentEventType = "reconciled"
	PaymentEventAmountMismatch      PaymentEventType = "amount_mismatch"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceCheckout PaymentEventSource = "checkout_callback"
	PaymentSourceGateway  PaymentEventSource = "razorpay_api"
	PaymentSourceBackend  PaymentEventSource = "reservation_backend"
	PaymentSourceSystem   PaymentEventSource = "system"
	PaymentSourceOperator PaymentEventSource = "operator"
)

// PaymentAudit is an immutable log entry for one payment event
type PaymentAudit struct {
	ID             uuid.UUID `json:"id" db:"id"`
	BookingID      *int64    `json:"booking_id,omitempty" db:"booking_id"`
	BookingRef     *string   `json:"booking_reference,omitempty" db:"booking_reference"`
	GatewayOrderID *string   `json:"gateway_order_id,omitempty" db:"gateway_order_id"`
	PaymentID      *string   `json:"payment_id,omitempty" db:"payment_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// amounts in minor units
	ExpectedAmount *int64  `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *int64  `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool   `json:"amounts_match,omitempty" db:"amounts_match"`

	RequestPayload  JSONB `json:"request_payload,omitempty" db:"request_payload"`
	ResponsePayload JSONB `json:"response_payload,omitempty" db:"response_payload"`

	HTTPStatusCode *int    `json:"http_status_code,omitempty" db:"http_status_code"`
	ErrorMessage   *string `json:"error_message,omitempty" db:"error_message"`
	ErrorCode      *string `json:"error_code,omitempty" db:"error_code"`

	ProcessingTimeMs *int    `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	DeviceInfo       JSONB   `json:"device_info,omitempty" db:"device_info"`
	IPAddress        *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent        *string `json:"user_agent,omitempty" db:"user_agent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the backend booking id
func (pa *PaymentAudit) SetBooking(bookingID int64) *PaymentAudit {
	if bookingID > 0 {
		pa.BookingID = &bookingID
	}
	return pa
}

// SetBookingRef sets the booking reference code (the gateway receipt)
func (pa *PaymentAudit) SetBookingRef(ref string) *PaymentAudit {
	if ref != "" {
		pa.BookingRef = &ref
	}
	return pa
}

// SetOrder sets the gateway order id
func (pa *PaymentAudit) SetOrder(orderID string) *PaymentAudit {
	if orderID != "" {
		pa.GatewayOrderID = &orderID
	}
	return pa
}

// SetPayment sets the gateway payment id
func (pa *PaymentAudit) SetPayment(paymentID string) *PaymentAudit {
	if paymentID != "" {
		pa.PaymentID = &paymentID
	}
	return pa
}

// SetAmounts records expected and received amounts and returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received int64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	if currency != "" {
		pa.Currency = &currency
	}
	match := expected == received
	pa.AmountsMatch = &match
	return match
}

// SetAmount records a single amount (order creation)
func (pa *PaymentAudit) SetAmount(amount int64, currency string) *PaymentAudit {
	pa.ExpectedAmount = &amount
	if currency != "" {
		pa.Currency = &currency
	}
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string, code string) *PaymentAudit {
	pa.ErrorMessage = &message
	if code != "" {
		pa.ErrorCode = &code
	}
	return pa
}

// SetHTTPStatus records the status code of the upstream call
func (pa *PaymentAudit) SetHTTPStatus(statusCode int) *PaymentAudit {
	pa.HTTPStatusCode = &statusCode
	return pa
}

// SetRequestPayload sets the request payload sent
func (pa *PaymentAudit) SetRequestPayload(payload map[string]interface{}) *PaymentAudit {
	pa.RequestPayload = JSONB(payload)
	return pa
}

// SetResponsePayload sets the response payload received
func (pa *PaymentAudit) SetResponsePayload(payload map[string]interface{}) *PaymentAudit {
	pa.ResponsePayload = JSONB(payload)
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent string, device map[string]interface{}) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	if len(device) > 0 {
		pa.DeviceInfo = JSONB(device)
	}
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}
