package services

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/staywell/booking-funnel/internal/config"
	"github.com/staywell/booking-funnel/internal/models"
	"github.com/staywell/booking-funnel/pkg/currency"
)

// ReceiptLine is one labelled money row on the confirmation
type ReceiptLine struct {
	Label       string `json:"label"`
	AmountCents int64  `json:"amountCents"`
	Display     string `json:"display"`
	Document    string `json:"-"` // symbol-free form for the PDF
}

// Receipt is the view model shown on the confirmation screen and exported as PDF
type Receipt struct {
	BookingID      int64         `json:"bookingId"`
	ReferenceCode  string        `json:"referenceCode"`
	Status         string        `json:"status"`
	GuestName      string        `json:"guestName,omitempty"`
	GuestEmail     string        `json:"guestEmail,omitempty"`
	CheckIn        string        `json:"checkIn,omitempty"`
	CheckOut       string        `json:"checkOut,omitempty"`
	Guests         string        `json:"guests,omitempty"`
	Currency       string        `json:"currency"`
	Lines          []ReceiptLine `json:"lines"`
	Total          ReceiptLine   `json:"total"`
	PaymentStatus  string        `json:"paymentStatus"`
	PaymentSource  string        `json:"paymentSource"` // gateway or booking
	PaymentID      string        `json:"paymentId,omitempty"`
	OrderID        string        `json:"orderId,omitempty"`
	SupportEmail   string        `json:"supportEmail,omitempty"`
	SupportPhone   string        `json:"supportPhone,omitempty"`
	LogoURL        string        `json:"logoUrl,omitempty"`
	GeneratedAt    time.Time     `json:"generatedAt"`
	BalanceWarning bool          `json:"balanceWarning,omitempty"`
}

// ConfirmationService builds receipts for completed bookings. It never changes remote state.
type ConfirmationService struct {
	backend ReservationBackend
	cfg     config.BookingConfig
	now     func() time.Time
}

// NewConfirmationService creates a new confirmation service
func NewConfirmationService(backend ReservationBackend, cfg config.BookingConfig) *ConfirmationService {
	return &ConfirmationService{backend: backend, cfg: cfg, now: time.Now}
}

// Load fetches the booking from the backend and builds its receipt
func (s *ConfirmationService) Load(ctx context.Context, bookingID int64, payment *models.PaymentDetails) (*Receipt, error) {
	booking, err := s.backend.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.Build(booking, payment), nil
}

// Build renders the receipt view model. Without payment details the booking's
// own payment status is shown.
func (s *ConfirmationService) Build(booking *models.Booking, payment *models.PaymentDetails) *Receipt {
	code := booking.Currency
	if code == "" {
		code = s.cfg.DefaultCurrency
	}

	r := &Receipt{
		BookingID:      booking.ID,
		ReferenceCode:  booking.ReferenceCode,
		Status:         string(booking.Status),
		Currency:       code,
		PaymentStatus:  booking.PaymentStatus,
		PaymentSource:  "booking",
		SupportEmail:   s.cfg.SupportEmail,
		SupportPhone:   s.cfg.SupportPhone,
		GeneratedAt:    s.now(),
		BalanceWarning: !booking.BalanceConsistent(),
	}
	if s.cfg.PublicBucketURL != "" {
		r.LogoURL = strings.TrimRight(s.cfg.PublicBucketURL, "/") + "/logo.png"
	}
	if booking.Customer != nil {
		r.GuestName = booking.Customer.FullName
		r.GuestEmail = booking.Customer.Email
	}
	if booking.CheckIn != nil {
		r.CheckIn = booking.CheckIn.Format("Mon, 02 Jan 2006")
	}
	if booking.CheckOut != nil {
		r.CheckOut = booking.CheckOut.Format("Mon, 02 Jan 2006")
	}
	if booking.Adults > 0 {
		r.Guests = pluralize(booking.Adults, "adult")
		if booking.Children > 0 {
			r.Guests += ", " + pluralize(booking.Children, "child")
		}
	}

	base := booking.TotalAmountCents - booking.TaxAmountCents - booking.FeeAmountCents + booking.DiscountAmountCents
	r.Lines = append(r.Lines, line("Room & extras", base, code))
	if booking.TaxAmountCents != 0 {
		r.Lines = append(r.Lines, line("Taxes", booking.TaxAmountCents, code))
	}
	if booking.FeeAmountCents != 0 {
		r.Lines = append(r.Lines, line("Fees", booking.FeeAmountCents, code))
	}
	if booking.DiscountAmountCents != 0 {
		r.Lines = append(r.Lines, line("Discount", -booking.DiscountAmountCents, code))
	}
	r.Lines = append(r.Lines,
		line("Amount paid", booking.AmountPaidCents, code),
		line("Balance due", booking.BalanceDueCents, code),
	)
	r.Total = line("Total", booking.TotalAmountCents, code)

	if payment != nil {
		r.PaymentSource = "gateway"
		r.PaymentID = payment.PaymentID
		r.OrderID = payment.OrderID
		if payment.Status != "" {
			r.PaymentStatus = payment.Status
		}
	}
	return r
}

// RenderPDF exports the receipt as a downloadable document
func (s *ConfirmationService) RenderPDF(r *Receipt) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking confirmation "+r.ReferenceCode, false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOOKING CONFIRMATION")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Reference : "+r.ReferenceCode)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Status    : "+strings.ToUpper(orDash(r.Status)))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Issued    : "+r.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Guest")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, tr("Name      : "+orDash(r.GuestName)))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Email     : "+orDash(r.GuestEmail))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Stay      : "+orDash(r.CheckIn)+" to "+orDash(r.CheckOut))
	pdf.Ln(7)
	if r.Guests != "" {
		pdf.Cell(0, 7, "Guests    : "+r.Guests)
		pdf.Ln(7)
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Charges")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for _, l := range r.Lines {
		pdf.CellFormat(110, 6, l.Label, "", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, l.Document, "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(110, 8, r.Total.Label, "T", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, r.Total.Document, "T", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, "Payment   : "+strings.ToUpper(orDash(r.PaymentStatus)))
	pdf.Ln(6)
	if r.PaymentID != "" {
		pdf.Cell(0, 6, "Payment ID: "+r.PaymentID)
		pdf.Ln(6)
	}
	if r.OrderID != "" {
		pdf.Cell(0, 6, "Order ID  : "+r.OrderID)
		pdf.Ln(6)
	}

	if r.SupportEmail != "" || r.SupportPhone != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 10)
		contact := strings.TrimSpace(strings.Join([]string{r.SupportEmail, r.SupportPhone}, " "))
		pdf.MultiCell(0, 6, "Questions about this booking? Contact "+contact+" quoting "+r.ReferenceCode+".", "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render confirmation PDF: %w", err)
	}

	filename := fmt.Sprintf("BOOKING_%s.pdf", safeFilenamePart(r.ReferenceCode))
	return buf.Bytes(), filename, nil
}

func line(label string, amount int64, code string) ReceiptLine {
	doc, err := currency.FormatWithCode(amount, code)
	if err != nil {
		doc = fmt.Sprintf("%d %s", amount, code)
	}
	return ReceiptLine{
		Label:       label,
		AmountCents: amount,
		Display:     currency.MustFormat(amount, code),
		Document:    doc,
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if noun == "child" {
		return fmt.Sprintf("%d children", n)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func safeFilenamePart(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "booking"
	}
	return s
}
