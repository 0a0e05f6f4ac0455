package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/config"
)

const sweepTimeout = 2 * time.Minute

// CronService manages scheduled background jobs
type CronService struct {
	cron           *cron.Cron
	cfg            config.JobsConfig
	reconciliation *ReconciliationService
	payments       *PaymentService
	rateLimits     *RateLimitService
	rateLimitCron  string
	logger         *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(cfg config.JobsConfig, reconciliation *ReconciliationService, payments *PaymentService, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:           cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cfg:            cfg,
		reconciliation: reconciliation,
		payments:       payments,
		logger:         logger,
	}
}

// SetRateLimitCleanup schedules pruning of expired rate limit records on Start
func (s *CronService) SetRateLimitCleanup(rateLimits *RateLimitService, schedule string) {
	s.rateLimits = rateLimits
	s.rateLimitCron = schedule
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	// Cron format: second minute hour day month weekday
	if _, err := s.cron.AddFunc(s.cfg.ReconcileSchedule, s.reconcileJob); err != nil {
		return fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}
	s.logger.WithField("schedule", s.cfg.ReconcileSchedule).Info("Scheduled: retry unrecorded payments")

	if _, err := s.cron.AddFunc(s.cfg.CheckoutExpirySchedule, s.expireCheckoutsJob); err != nil {
		return fmt.Errorf("failed to schedule checkout expiry job: %w", err)
	}
	s.logger.WithField("schedule", s.cfg.CheckoutExpirySchedule).Info("Scheduled: abandon stale checkout sessions")

	if s.rateLimits != nil {
		if _, err := s.cron.AddFunc(s.rateLimitCron, s.cleanupRateLimitsJob); err != nil {
			return fmt.Errorf("failed to schedule rate limit cleanup job: %w", err)
		}
		s.logger.WithField("schedule", s.rateLimitCron).Info("Scheduled: prune expired rate limit records")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) reconcileJob() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	startTime := time.Now()
	resolved, failed, err := s.reconciliation.RetryDue(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Reconciliation sweep failed")
		return
	}
	if resolved+failed == 0 {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"resolved": resolved,
		"failed":   failed,
		"duration": time.Since(startTime).String(),
	}).Info("[CRON] Reconciliation sweep finished")
}

func (s *CronService) expireCheckoutsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	expired, err := s.payments.ExpireStaleSessions(ctx, s.cfg.CheckoutSessionTTL, s.cfg.BatchSize)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Checkout expiry sweep failed")
		return
	}
	if expired > 0 {
		s.logger.WithField("abandoned", expired).Info("[CRON] Checkout expiry sweep finished")
	}
}

func (s *CronService) cleanupRateLimitsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.rateLimits.CleanupExpired(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Rate limit cleanup failed")
		return
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Debug("[CRON] Rate limit cleanup finished")
	}
}

// RunReconcileNow runs the reconciliation sweep immediately
func (s *CronService) RunReconcileNow() {
	s.reconcileJob()
}

// RunExpireCheckoutsNow runs the checkout expiry sweep immediately
func (s *CronService) RunExpireCheckoutsNow() {
	s.expireCheckoutsJob()
}
