package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staywell/booking-funnel/pkg/jwt"
)

func setupTestJWTService() *jwt.Service {
	return jwt.NewService("test-access-secret-key-123456789", time.Hour)
}

func setupTestRouter() (*gin.Engine, *logrus.Logger, *test.Hook) {
	gin.SetMode(gin.TestMode)
	logger, hook := test.NewNullLogger()
	return gin.New(), logger, hook
}

func TestAuthMiddleware_Success(t *testing.T) {
	jwtService := setupTestJWTService()
	router, logger, _ := setupTestRouter()

	token, _, err := jwtService.GenerateAccessToken("frontdesk", []string{RoleOperator})
	require.NoError(t, err)

	router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
		opCtx, exists := GetOperatorContext(c)
		require.True(t, exists)
		c.JSON(http.StatusOK, gin.H{"message": "success", "username": opCtx.Username})
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "frontdesk")
}

func TestAuthMiddleware_MissingAuthHeader(t *testing.T) {
	jwtService := setupTestJWTService()
	router, logger, hook := setupTestRouter()

	router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_AUTH_HEADER")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestAuthMiddleware_InvalidAuthFormat(t *testing.T) {
	jwtService := setupTestJWTService()
	router, logger, _ := setupTestRouter()

	router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "should not reach here"})
	})

	tests := []struct {
		name   string
		header string
	}{
		{"Missing Bearer", "some-token"},
		{"Wrong prefix", "Basic some-token"},
		{"Empty Bearer", "Bearer "},
		{"No token", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_AUTH_FORMAT")
		})
	}
}

func TestAuthMiddleware_InvalidAndExpiredTokens(t *testing.T) {
	jwtService := setupTestJWTService()
	router, logger, _ := setupTestRouter()
	router.GET("/protected", AuthMiddleware(jwtService, logger), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	expired, _, err := jwt.NewService("test-access-secret-key-123456789", -time.Minute).GenerateAccessToken("frontdesk", nil)
	require.NoError(t, err)
	foreign, _, err := jwt.NewService("some-other-secret", time.Hour).GenerateAccessToken("frontdesk", nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{"garbage", "not.a.token", "INVALID_TOKEN"},
		{"wrong secret", foreign, "INVALID_TOKEN"},
		{"expired", expired, "TOKEN_EXPIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	jwtService := setupTestJWTService()
	router, logger, _ := setupTestRouter()

	router.GET("/ops", AuthMiddleware(jwtService, logger), RequireRole(RoleOperator), func(c *gin.Context) {
		c.String(http.StatusOK, OperatorName(c))
	})
	router.GET("/no-auth", RequireRole(RoleOperator), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	t.Run("operator allowed", func(t *testing.T) {
		token, _, err := jwtService.GenerateAccessToken("frontdesk", []string{RoleOperator})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/ops", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "frontdesk", w.Body.String())
	})

	t.Run("missing role forbidden", func(t *testing.T) {
		token, _, err := jwtService.GenerateAccessToken("viewer", []string{"readonly"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/ops", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_PERMISSIONS")
	})

	t.Run("without auth middleware", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no-auth", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_USER_CONTEXT")
	})
}

func TestGetOperatorContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, exists := GetOperatorContext(c)
	assert.False(t, exists)
	assert.Equal(t, RoleOperator, OperatorName(c))

	c.Set(OperatorContextKey, "wrong type")
	_, exists = GetOperatorContext(c)
	assert.False(t, exists)

	c.Set(OperatorContextKey, OperatorContext{Username: "nightshift", Roles: []string{RoleOperator}})
	opCtx, exists := GetOperatorContext(c)
	assert.True(t, exists)
	assert.Equal(t, "nightshift", opCtx.Username)
	assert.Equal(t, "nightshift", OperatorName(c))
}

func TestIdempotency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/optional", Idempotency(false), func(c *gin.Context) {
		c.String(http.StatusOK, IdempotencyKey(c))
	})
	router.POST("/required", Idempotency(true), func(c *gin.Context) {
		c.String(http.StatusOK, IdempotencyKey(c))
	})

	tests := []struct {
		name     string
		path     string
		key      string
		wantCode int
		wantBody string
	}{
		{"optional absent", "/optional", "", http.StatusOK, ""},
		{"optional present", "/optional", "3f1c9a2e-booking", http.StatusOK, "3f1c9a2e-booking"},
		{"required absent", "/required", "", http.StatusBadRequest, "missing_idempotency_key"},
		{"too short", "/optional", "abc", http.StatusBadRequest, "invalid_idempotency_key"},
		{"bad characters", "/required", "key with spaces", http.StatusBadRequest, "invalid_idempotency_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(IdempotencyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
