package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/internal/utils"
)

// RateLimiter decides whether a client may make another request in scope
type RateLimiter interface {
	Allow(ctx context.Context, scope, identifier string) error
}

// RateLimit rejects requests over the per-IP limit for scope with 429.
// If the limiter itself fails the request is let through.
func RateLimit(limiter RateLimiter, scope string, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.GetRealIP(c)
		err := limiter.Allow(c.Request.Context(), scope, ip)
		if err == nil {
			c.Next()
			return
		}

		var limitErr *models.RateLimitError
		if !errors.As(err, &limitErr) {
			logger.WithError(err).WithField("scope", scope).Error("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		logger.WithFields(logrus.Fields{
			"ip":          ip,
			"scope":       scope,
			"retry_after": limitErr.RetryAfter,
		}).Warn("Rate limit exceeded")

		seconds := int(time.Until(limitErr.RetryAfter).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   limitErr.Code(),
			"message": limitErr.Error(),
		})
	}
}
