package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Reservation backend that owns bookings
	Backend BackendConfig

	// Razorpay configuration
	Payment PaymentConfig

	// Booking form defaults
	Booking BookingConfig

	// Operator API authentication
	JWT      JWTConfig
	Operator OperatorConfig

	// CORS configuration
	CORS CORSConfig

	// Background jobs
	Jobs JobsConfig

	// Per-IP limits on the public write endpoints
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// BackendConfig points at the external reservation backend
type BackendConfig struct {
	BaseURL  string
	APIToken string // sent as Bearer token on server-to-server calls
	Timeout  time.Duration
}

// PaymentConfig holds Razorpay configuration
type PaymentConfig struct {
	KeyID        string // public key id, also handed to checkout.js
	KeySecret    string // SECRET - used for Basic auth and signature verification, never exposed
	APIURL       string
	MerchantName string
	ThemeColor   string
	Timeout      time.Duration
}

// BookingConfig holds defaults applied to booking drafts
type BookingConfig struct {
	DefaultCurrency    string
	TaxRateBasisPoints int
	PublicBucketURL    string // image host for confirmation documents
	SupportEmail       string
	SupportPhone       string
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// OperatorConfig holds the single operator account for the admin API
type OperatorConfig struct {
	Username     string
	PasswordHash string // bcrypt hash
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// JobsConfig holds schedules for the background sweeps
type JobsConfig struct {
	Enabled                bool
	ReconcileSchedule      string // cron spec with seconds
	CheckoutExpirySchedule string
	CheckoutSessionTTL     time.Duration
	ReconcileMaxAttempts   int
	BatchSize              int
}

// RateLimitConfig caps public write requests per client IP within Window
type RateLimitConfig struct {
	Enabled         bool
	BookingsPerIP   int
	OrdersPerIP     int
	Window          time.Duration
	CleanupSchedule string // cron spec with seconds
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:  strings.TrimRight(getEnv("BACKEND_API_URL", ""), "/"),
			APIToken: getEnv("BACKEND_API_TOKEN", ""),
			Timeout:  time.Duration(getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Payment: PaymentConfig{
			KeyID:        getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:    getEnv("RAZORPAY_KEY_SECRET", ""),
			APIURL:       strings.TrimRight(getEnv("RAZORPAY_API_URL", "https://api.razorpay.com/v1"), "/"),
			MerchantName: getEnv("RAZORPAY_MERCHANT_NAME", "StayWell Hotels"),
			ThemeColor:   getEnv("RAZORPAY_THEME_COLOR", "#0f766e"),
			Timeout:      time.Duration(getEnvAsInt("RAZORPAY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Booking: BookingConfig{
			DefaultCurrency:    getEnv("DEFAULT_CURRENCY", "INR"),
			TaxRateBasisPoints: getEnvAsInt("TAX_RATE_BASIS_POINTS", 0),
			PublicBucketURL:    getEnv("PUBLIC_BUCKET_URL", ""),
			SupportEmail:       getEnv("SUPPORT_EMAIL", "reservations@staywell.example"),
			SupportPhone:       getEnv("SUPPORT_PHONE", ""),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Operator: OperatorConfig{
			Username:     getEnv("OPERATOR_USERNAME", "operator"),
			PasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Idempotency-Key"}),
		},
		Jobs: JobsConfig{
			Enabled:                getEnvAsBool("JOBS_ENABLED", true),
			ReconcileSchedule:      getEnv("RECONCILE_CRON", "0 */5 * * * *"),
			CheckoutExpirySchedule: getEnv("CHECKOUT_EXPIRY_CRON", "0 */10 * * * *"),
			CheckoutSessionTTL:     time.Duration(getEnvAsInt("CHECKOUT_SESSION_TTL_MINUTES", 60)) * time.Minute,
			ReconcileMaxAttempts:   getEnvAsInt("RECONCILE_MAX_ATTEMPTS", 10),
			BatchSize:              getEnvAsInt("JOBS_BATCH_SIZE", 50),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool("RATE_LIMIT_ENABLED", true),
			BookingsPerIP:   getEnvAsInt("RATE_LIMIT_BOOKINGS_PER_IP", 10),
			OrdersPerIP:     getEnvAsInt("RATE_LIMIT_ORDERS_PER_IP", 30),
			Window:          time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_MINUTES", 60)) * time.Minute,
			CleanupSchedule: getEnv("RATE_LIMIT_CLEANUP_CRON", "0 15 * * * *"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration.
// Razorpay credentials are deliberately not required here: a missing key surfaces
// per request as a gateway configuration error.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_API_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Booking.TaxRateBasisPoints < 0 || c.Booking.TaxRateBasisPoints > 10000 {
		return fmt.Errorf("TAX_RATE_BASIS_POINTS must be between 0 and 10000")
	}

	if c.RateLimit.Enabled && (c.RateLimit.BookingsPerIP < 1 || c.RateLimit.OrdersPerIP < 1) {
		return fmt.Errorf("rate limits must be at least 1 when RATE_LIMIT_ENABLED is set")
	}

	if c.Jobs.ReconcileMaxAttempts < 1 {
		return fmt.Errorf("RECONCILE_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

// PaymentConfigured reports whether Razorpay credentials are present
func (p PaymentConfig) PaymentConfigured() bool {
	return p.KeyID != "" && p.KeySecret != ""
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
