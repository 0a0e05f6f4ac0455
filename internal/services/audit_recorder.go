package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/internal/utils"
)

// RequestMeta carries caller details copied into audit entries
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AuditRecorder writes payment audits without letting a storage failure break the payment flow
type AuditRecorder struct {
	log    AuditLog
	logger *logrus.Logger
}

// NewAuditRecorder creates a new audit recorder
func NewAuditRecorder(log AuditLog, logger *logrus.Logger) *AuditRecorder {
	return &AuditRecorder{log: log, logger: logger}
}

// Record stores the audit entry, attaching request metadata when available
func (r *AuditRecorder) Record(ctx context.Context, audit *models.PaymentAudit, meta *RequestMeta) {
	if r == nil || r.log == nil {
		return
	}
	if meta != nil {
		device := utils.ParseUserAgent(meta.UserAgent)
		audit.SetMetadata(meta.IPAddress, meta.UserAgent, device.ToMap())
	}
	if err := r.log.Log(ctx, audit); err != nil {
		// already logged by the repository; the payment outcome stands
		r.logger.WithFields(logrus.Fields{
			"event_type": audit.EventType,
		}).Warn("Continuing without payment audit entry")
	}
}
