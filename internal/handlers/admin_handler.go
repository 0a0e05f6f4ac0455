package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/config"
	"github.com/staywell/booking-funnel/internal/middleware"
	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/internal/utils"
	"github.com/staywell/booking-funnel/pkg/jwt"
)

// ReconciliationManager lets operators inspect and settle unrecorded payments
type ReconciliationManager interface {
	List(ctx context.Context, status models.ReconciliationStatus, limit int) ([]*models.ReconciliationEntry, error)
	Retry(ctx context.Context, id uuid.UUID, actor string) (*models.ReconciliationEntry, error)
	Resolve(ctx context.Context, id uuid.UUID, actor string) error
}

// SessionLister lists checkout sessions
type SessionLister interface {
	ListSessions(ctx context.Context, status models.CheckoutSessionStatus, limit int) ([]*models.CheckoutSession, error)
}

// JobRunner triggers the background sweeps on demand
type JobRunner interface {
	RunReconcileNow()
	RunExpireCheckoutsNow()
}

// LoginRequest is the body of POST /api/admin/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the operator access token
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AdminHandler handles the operator API
type AdminHandler struct {
	jwtService      *jwt.Service
	operator        config.OperatorConfig
	reconciliations ReconciliationManager
	sessions        SessionLister
	jobs            JobRunner
	logger          *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	jwtService *jwt.Service,
	operator config.OperatorConfig,
	reconciliations ReconciliationManager,
	sessions SessionLister,
	jobs JobRunner,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		jwtService:      jwtService,
		operator:        operator,
		reconciliations: reconciliations,
		sessions:        sessions,
		jobs:            jobs,
		logger:          logger,
	}
}

// Login handles POST /api/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.operator.Username)) == 1
	passwordOK := utils.CheckOperatorPassword(h.operator.PasswordHash, req.Password)
	if !usernameOK || !passwordOK {
		h.logger.WithFields(logrus.Fields{
			"username": req.Username,
			"ip":       utils.GetRealIP(c),
		}).Warn("Operator login failed")
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Success: false,
			Error:   "invalid_credentials",
			Message: "Invalid username or password",
		})
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(req.Username, []string{middleware.RoleOperator})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("username", req.Username).Info("Operator login successful")
	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}

// ListReconciliations handles GET /api/admin/reconciliations
func (h *AdminHandler) ListReconciliations(c *gin.Context) {
	status := models.ReconciliationStatus(c.DefaultQuery("status", string(models.ReconciliationPending)))
	entries, err := h.reconciliations.List(c.Request.Context(), status, queryLimit(c, 50, 200))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(entries), "data": entries})
}

// RetryReconciliation handles POST /api/admin/reconciliations/:id/retry
func (h *AdminHandler) RetryReconciliation(c *gin.Context) {
	id, ok := parseUUID(c)
	if !ok {
		return
	}

	entry, err := h.reconciliations.Retry(c.Request.Context(), id, middleware.OperatorName(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entry})
}

// ResolveReconciliation handles POST /api/admin/reconciliations/:id/resolve
func (h *AdminHandler) ResolveReconciliation(c *gin.Context) {
	id, ok := parseUUID(c)
	if !ok {
		return
	}

	if err := h.reconciliations.Resolve(c.Request.Context(), id, middleware.OperatorName(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListCheckoutSessions handles GET /api/admin/checkout-sessions
func (h *AdminHandler) ListCheckoutSessions(c *gin.Context) {
	status := models.CheckoutSessionStatus(c.Query("status"))
	sessions, err := h.sessions.ListSessions(c.Request.Context(), status, queryLimit(c, 50, 200))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(sessions), "data": sessions})
}

// RunJob handles POST /api/admin/jobs/:name. The sweep runs in the background.
func (h *AdminHandler) RunJob(c *gin.Context) {
	var run func()
	switch c.Param("name") {
	case "reconcile":
		run = h.jobs.RunReconcileNow
	case "expire-checkouts":
		run = h.jobs.RunExpireCheckoutsNow
	default:
		c.JSON(http.StatusNotFound, ErrorResponse{Success: false, Error: "unknown_job", Message: "Unknown job " + c.Param("name")})
		return
	}

	go run()
	h.logger.WithFields(logrus.Fields{
		"job":      c.Param("name"),
		"operator": middleware.OperatorName(c),
	}).Info("Job triggered manually")
	c.JSON(http.StatusAccepted, gin.H{"success": true, "job": c.Param("name")})
}

func parseUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid_id", Message: "ID must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}
