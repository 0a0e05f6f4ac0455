package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGetRealIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{"X-Real-IP public", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"Forwarded picks first public hop", map[string]string{"X-Forwarded-For": "10.0.0.4, 198.51.100.9, 203.0.113.1"}, "198.51.100.9"},
		{"Forwarded all private", map[string]string{"X-Forwarded-For": "10.0.0.4, 192.168.1.2"}, "10.0.0.4"},
		{"Direct connection", nil, "192.0.2.1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)
			for k, v := range tc.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tc.expected, GetRealIP(c))
		})
	}
}

func TestParseUserAgent(t *testing.T) {
	t.Run("iPhone Safari", func(t *testing.T) {
		info := ParseUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
		assert.Equal(t, "mobile", info.DeviceType)
		assert.Equal(t, "Safari", info.Browser)
		assert.False(t, info.IsBot)
	})

	t.Run("desktop Chrome", func(t *testing.T) {
		info := ParseUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		assert.Equal(t, "desktop", info.DeviceType)
		assert.Equal(t, "Chrome", info.Browser)
		assert.Equal(t, "desktop", info.ToMap()["device_type"])
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "unknown", ParseUserAgent("").DeviceType)
	})
}

func TestHashOperatorPassword(t *testing.T) {
	_, err := HashOperatorPassword("short")
	assert.Error(t, err)

	hash, err := HashOperatorPassword("correct horse battery")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery")))
	assert.True(t, CheckOperatorPassword(hash, "correct horse battery"))
	assert.False(t, CheckOperatorPassword(hash, "wrong horse battery"))
	assert.False(t, CheckOperatorPassword("", "correct horse battery"))

	secret, err := GenerateSecret(32)
	require.NoError(t, err)
	assert.Len(t, secret, 64)
}
