package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking_funnel_test")
	t.Setenv("BACKEND_API_URL", "https://backend.example.com/")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RAZORPAY_KEY_ID", "")
	t.Setenv("RAZORPAY_KEY_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://backend.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "https://api.razorpay.com/v1", cfg.Payment.APIURL)
	assert.Equal(t, "INR", cfg.Booking.DefaultCurrency)
	assert.Equal(t, 60*time.Minute, cfg.Jobs.CheckoutSessionTTL)
	assert.Contains(t, cfg.CORS.AllowedHeaders, "Idempotency-Key")
	assert.False(t, cfg.Payment.PaymentConfigured())
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.BookingsPerIP)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BACKEND_API_URL", "https://backend.example.com")
	t.Setenv("JWT_SECRET", "test-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_RazorpayCredentialsOptional(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_abc")
	t.Setenv("RAZORPAY_KEY_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Payment.PaymentConfigured())
}

func TestLoad_InvalidTaxRate(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TAX_RATE_BASIS_POINTS", "12000")

	_, err := Load()
	require.Error(t, err)
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("TEST_SLICE", " https://a.example , ,https://b.example ")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvAsSlice("TEST_SLICE", nil))
}

func TestLoad_InvalidRateLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_BOOKINGS_PER_IP", "0")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("RATE_LIMIT_ENABLED", "false")
	_, err = Load()
	assert.NoError(t, err)
}
