package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/staywell/booking-funnel/internal/models"
)

type stubLimiter struct {
	err      error
	gotIP    string
	gotScope string
}

func (s *stubLimiter) Allow(_ context.Context, scope, identifier string) error {
	s.gotScope = scope
	s.gotIP = identifier
	return s.err
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantLevel  logrus.Level
		wantLogged bool
	}{
		{"under limit", nil, http.StatusOK, 0, false},
		{"over limit", &models.RateLimitError{Scope: "booking", RetryAfter: time.Now().Add(10 * time.Minute)}, http.StatusTooManyRequests, logrus.WarnLevel, true},
		{"limiter down fails open", errors.New("db unavailable"), http.StatusOK, logrus.ErrorLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, logger, hook := setupTestRouter()
			limiter := &stubLimiter{err: tt.err}
			router.POST("/bookings", RateLimit(limiter, "booking", logger), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
			req.Header.Set("X-Real-IP", "203.0.113.9")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "203.0.113.9", limiter.gotIP)
			assert.Equal(t, "booking", limiter.gotScope)
			if tt.wantLogged {
				if assert.NotNil(t, hook.LastEntry()) {
					assert.Equal(t, tt.wantLevel, hook.LastEntry().Level)
				}
			}
			if tt.wantCode == http.StatusTooManyRequests {
				assert.Contains(t, w.Body.String(), "rate_limited")
				assert.NotEmpty(t, w.Header().Get("Retry-After"))
			}
		})
	}
}
