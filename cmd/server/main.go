package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/config"
	"github.com/staywell/booking-funnel/internal/database"
	"github.com/staywell/booking-funnel/internal/handlers"
	"github.com/staywell/booking-funnel/internal/middleware"
	"github.com/staywell/booking-funnel/internal/services"
	"github.com/staywell/booking-funnel/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting StayWell booking funnel API")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	submissionRepository := database.NewBookingSubmissionRepository(db.DB)
	paymentOrderRepository := database.NewPaymentOrderRepository(db.DB)
	checkoutSessionRepository := database.NewCheckoutSessionRepository(db.DB)
	reconciliationRepository := database.NewReconciliationRepository(db.DB)
	paymentAuditRepository := database.NewPaymentAuditRepository(db.DB, logger)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	razorpayService := services.NewRazorpayService(&cfg.Payment, logger)
	if !cfg.Payment.PaymentConfigured() {
		logger.Warn("Razorpay credentials missing; create-order and verify-payment will fail until configured")
	}
	backendClient := services.NewBackendClient(&cfg.Backend, logger)
	auditRecorder := services.NewAuditRecorder(paymentAuditRepository, logger)

	bookingService := services.NewBookingService(
		backendClient,
		submissionRepository,
		cfg.Booking.TaxRateBasisPoints,
		logger,
	)
	paymentService := services.NewPaymentService(
		razorpayService,
		backendClient,
		paymentOrderRepository,
		checkoutSessionRepository,
		reconciliationRepository,
		auditRecorder,
		logger,
	)
	reconciliationService := services.NewReconciliationService(
		reconciliationRepository,
		backendClient,
		checkoutSessionRepository,
		auditRecorder,
		cfg.Jobs.ReconcileMaxAttempts,
		logger,
	)
	confirmationService := services.NewConfirmationService(backendClient, cfg.Booking)

	rateLimitService := services.NewRateLimitService(db.DB, cfg.RateLimit)

	cronService := services.NewCronService(cfg.Jobs, reconciliationService, paymentService, logger)
	if cfg.RateLimit.Enabled {
		cronService.SetRateLimitCleanup(rateLimitService, cfg.RateLimit.CleanupSchedule)
	}
	if cfg.Jobs.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	} else {
		logger.Info("Background jobs disabled")
	}
	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	razorpayHandler := handlers.NewRazorpayHandler(paymentService, logger)
	confirmationHandler := handlers.NewConfirmationHandler(confirmationService, paymentService, logger)
	adminHandler := handlers.NewAdminHandler(
		jwtService,
		cfg.Operator,
		reconciliationService,
		paymentService,
		cronService,
		logger,
	)
	auditHandler := handlers.NewAuditHandler(paymentAuditRepository, logger)

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  cfg.CORS.AllowedMethods,
		AllowHeaders:  cfg.CORS.AllowedHeaders,
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	var bookingLimit, orderLimit gin.HandlerFunc = noopMiddleware, noopMiddleware
	if cfg.RateLimit.Enabled {
		bookingLimit = middleware.RateLimit(rateLimitService, services.ScopeBooking, logger)
		orderLimit = middleware.RateLimit(rateLimitService, services.ScopeOrder, logger)
	}

	api := router.Group("/api")
	{
		// Booking creation (public)
		api.POST("/bookings", bookingLimit, middleware.Idempotency(false), bookingHandler.CreateBooking)

		// Confirmation screen and downloadable document (public, read-only)
		api.GET("/bookings/:id/confirmation", confirmationHandler.GetConfirmation)
		api.GET("/bookings/:id/confirmation.pdf", confirmationHandler.DownloadConfirmation)

		// Razorpay checkout (public)
		razorpay := api.Group("/razorpay")
		{
			razorpay.POST("/create-order", orderLimit, razorpayHandler.CreateOrder)
			razorpay.POST("/verify-payment", razorpayHandler.VerifyPayment)
			razorpay.POST("/checkout-dismissed", razorpayHandler.CheckoutDismissed)
		}

		// Operator API
		api.POST("/admin/login", adminHandler.Login)

		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService, logger))
		admin.Use(middleware.RequireRole(middleware.RoleOperator))
		{
			admin.GET("/reconciliations", adminHandler.ListReconciliations)
			admin.POST("/reconciliations/:id/retry", adminHandler.RetryReconciliation)
			admin.POST("/reconciliations/:id/resolve", adminHandler.ResolveReconciliation)
			admin.GET("/checkout-sessions", adminHandler.ListCheckoutSessions)
			admin.POST("/jobs/:name", adminHandler.RunJob)
			admin.GET("/payment-audits", auditHandler.ListPaymentAudits)
			admin.GET("/payment-audits/amount-mismatches", auditHandler.ListAmountMismatches)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // verify-payment waits on the gateway and the backend
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cfg.Jobs.Enabled {
		logger.Info("Stopping cron service...")
		cronService.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func noopMiddleware(c *gin.Context) {
	c.Next()
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if key := middleware.IdempotencyKey(c); key != "" {
			fields["idempotency_key"] = key
		}
		if op, ok := middleware.GetOperatorContext(c); ok {
			fields["operator"] = op.Username
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
