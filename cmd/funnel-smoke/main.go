package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/staywell/booking-funnel/internal/funnel"
	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/internal/services"
)

// funnel-smoke drives one booking through the public API the way the checkout UI does.
// With -outcome=pay it fakes the gateway callback by signing with RAZORPAY_KEY_SECRET,
// so it must only be pointed at a staging backend.
func main() {
	var (
		apiURL  string
		hotelID int64
		roomID  int64
		price   int64
		nights  int
		outcome string
	)
	flag.StringVar(&apiURL, "api", "http://localhost:8080", "booking funnel API base URL")
	flag.Int64Var(&hotelID, "hotel", 1, "hotel id")
	flag.Int64Var(&roomID, "room", 1, "room id")
	flag.Int64Var(&price, "price", 450000, "room base price per night in minor units")
	flag.IntVar(&nights, "nights", 2, "number of nights")
	flag.StringVar(&outcome, "outcome", "dismiss", "checkout outcome to simulate: dismiss or pay")
	flag.Parse()

	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	secret := os.Getenv("RAZORPAY_KEY_SECRET")
	if outcome == "pay" {
		if os.Getenv("ENVIRONMENT") == "production" {
			logger.Fatal("refusing to fake a paid checkout with ENVIRONMENT=production")
		}
		if secret == "" {
			logger.Fatal("RAZORPAY_KEY_SECRET is required for -outcome=pay")
		}
	}

	checkIn := time.Now().AddDate(0, 0, 14).Truncate(24 * time.Hour)
	wizard := funnel.NewWizard(models.BookingDraft{
		HotelID:            hotelID,
		RoomID:             roomID,
		RoomName:           "Smoke test room",
		RoomBasePriceCents: price,
		Currency:           "INR",
		CheckIn:            checkIn,
		CheckOut:           checkIn.AddDate(0, 0, nights),
		Adults:             2,
	})
	wizard.SetGuest(models.GuestDetails{
		FullName: "Smoke Test",
		Email:    "smoke@staywell.example",
		Phone:    "+919812345678",
	})
	for wizard.Step() != funnel.StepReview {
		if err := wizard.Next(); err != nil {
			logger.Fatalf("Wizard rejected step %s: %v", wizard.Step(), err)
		}
	}
	draft := wizard.Draft()
	logger.WithFields(logrus.Fields{
		"nights": draft.Nights(),
		"total":  wizard.Totals().TotalAmountCents,
	}).Info("Draft ready")

	bridge := funnel.NewChannelBridge()
	go host(bridge, outcome, secret, logger)

	client := funnel.NewClient(apiURL, 30*time.Second, logger)
	flow := funnel.NewFlow(client, bridge, funnel.NewLogNotifier(logger), funnel.Merchant{Name: "StayWell Hotels"}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := flow.Checkout(ctx, wizard, "smoke-"+uuid.NewString())
	switch {
	case errors.Is(err, funnel.ErrCheckoutDismissed):
		logger.WithField("state", flow.State()).Info("Checkout dismissed as requested")
	case err != nil:
		logger.WithField("state", flow.State()).Fatalf("Checkout failed: %v", err)
	default:
		entry := logger.WithFields(logrus.Fields{
			"state":   flow.State(),
			"booking": result.Booking.ReferenceCode,
		})
		if result.Payment != nil {
			entry = entry.WithField("paymentId", result.Payment.PaymentID)
		}
		entry.Info("Booking confirmed")
	}
}

// host plays the hosted checkout: it prints the options it was opened with and
// answers with the requested outcome.
func host(bridge *funnel.ChannelBridge, outcome, secret string, logger *logrus.Logger) {
	opts := <-bridge.Opened
	raw, _ := json.MarshalIndent(opts, "", "  ")
	fmt.Println(string(raw))

	if outcome != "pay" {
		bridge.Outcomes <- funnel.OutcomeDismissed{}
		return
	}

	paymentID := "pay_smoke" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	logger.WithField("paymentId", paymentID).Info("Signing simulated payment")
	bridge.Outcomes <- funnel.OutcomeSuccess{
		OrderID:   opts.OrderID,
		PaymentID: paymentID,
		Signature: services.ComputeSignature(secret, opts.OrderID, paymentID),
	}
}
