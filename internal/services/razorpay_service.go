package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/config"
	"github.com/staywell/booking-funnel/internal/models"
)

// RazorpayService talks to the Razorpay Orders API and verifies checkout signatures
type RazorpayService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// razorpayOrderRequest is the body of POST /v1/orders
type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// razorpayErrorResponse is the error envelope Razorpay returns on 4xx/5xx
type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Field       string `json:"field,omitempty"`
	} `json:"error"`
}

// NewRazorpayService creates a new Razorpay client
func NewRazorpayService(cfg *config.PaymentConfig, logger *logrus.Logger) *RazorpayService {
	return &RazorpayService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// KeyID returns the public key id handed to checkout.js
func (s *RazorpayService) KeyID() string {
	return s.config.KeyID
}

// CheckConfigured returns a GatewayConfigError naming the first missing credential
func (s *RazorpayService) CheckConfigured() error {
	if s.config.KeyID == "" {
		return &models.GatewayConfigError{Missing: "RAZORPAY_KEY_ID"}
	}
	if s.config.KeySecret == "" {
		return &models.GatewayConfigError{Missing: "RAZORPAY_KEY_SECRET"}
	}
	return nil
}

// CreateOrder opens a new order on Razorpay
func (s *RazorpayService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.PaymentOrder, error) {
	if err := s.CheckConfigured(); err != nil {
		return nil, err
	}

	jsonBody, err := json.Marshal(&razorpayOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpointURL := s.config.APIURL + "/orders"

	s.logger.WithFields(logrus.Fields{
		"receipt":       req.Receipt,
		"amount":        req.Amount,
		"currency":      req.Currency,
		"key_id_prefix": keyPrefix(s.config.KeyID),
	}).Info("Creating Razorpay order")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(s.config.KeyID, s.config.KeySecret)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call Razorpay orders endpoint")
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		description := string(body)
		var errResp razorpayErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Description != "" {
			description = errResp.Error.Description
		}
		s.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"receipt":     req.Receipt,
			"description": description,
		}).Warn("Razorpay rejected order")
		return nil, &models.GatewayError{StatusCode: resp.StatusCode, Description: description}
	}

	var order models.PaymentOrder
	if err := json.Unmarshal(body, &order); err != nil {
		s.logger.WithFields(logrus.Fields{
			"body":  string(body),
			"error": err.Error(),
		}).Error("Failed to parse Razorpay order")
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"receipt":  order.Receipt,
		"status":   order.Status,
	}).Info("Razorpay order created")

	return &order, nil
}

// ComputeSignature returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID))
func ComputeSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a checkout callback signature in constant time.
// Only the key secret is needed here.
func (s *RazorpayService) VerifySignature(orderID, paymentID, signature string) (bool, error) {
	if s.config.KeySecret == "" {
		return false, &models.GatewayConfigError{Missing: "RAZORPAY_KEY_SECRET"}
	}
	expected := ComputeSignature(s.config.KeySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

func keyPrefix(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
