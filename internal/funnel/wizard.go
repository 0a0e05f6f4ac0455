package funnel

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/staywell/booking-funnel/internal/models"
)

// Step is one page of the booking wizard
type Step int

const (
	StepGuestDetails Step = iota + 1
	StepExtras
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepGuestDetails:
		return "guest_details"
	case StepExtras:
		return "extras"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// stepFields lists the field path prefixes each step owns. Review checks everything.
var stepFields = map[Step][]string{
	StepGuestDetails: {"guest."},
	StepExtras:       {"addOns", "promoCode", "adults", "children"},
}

// Wizard holds the booking draft across the three steps. It lives only as long
// as the form session and is cleared after a confirmed checkout.
type Wizard struct {
	mu    sync.Mutex
	step  Step
	draft models.BookingDraft
	now   func() time.Time
}

// NewWizard starts a wizard for the room chosen on the availability page
func NewWizard(stay models.BookingDraft) *Wizard {
	return &Wizard{step: StepGuestDetails, draft: stay, now: time.Now}
}

// Step returns the current step
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// SetGuest replaces the personal details of step one
func (w *Wizard) SetGuest(guest models.GuestDetails) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Guest = guest
}

// SetOccupancy sets adult and child counts
func (w *Wizard) SetOccupancy(adults, children int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Adults = adults
	w.draft.Children = children
}

// ToggleAddOn selects the add-on, or removes it when already selected
func (w *Wizard) ToggleAddOn(addOn models.AddOn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, a := range w.draft.AddOns {
		if a.ID == addOn.ID {
			w.draft.AddOns = append(w.draft.AddOns[:i], w.draft.AddOns[i+1:]...)
			return
		}
	}
	w.draft.AddOns = append(w.draft.AddOns, addOn)
}

// SetPromoCode stores the promo code; the backend decides whether it applies
func (w *Wizard) SetPromoCode(code string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.PromoCode = strings.ToUpper(strings.TrimSpace(code))
}

// Totals returns the amounts shown on the review step
func (w *Wizard) Totals() models.Totals {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.ComputeTotals()
}

// Draft returns a copy of the current draft
func (w *Wizard) Draft() models.BookingDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.draft
	d.AddOns = append([]models.AddOn(nil), w.draft.AddOns...)
	return d
}

// Next validates the current step and advances. Validation errors are limited
// to the fields the current step shows.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.validateStep(w.step); err != nil {
		return err
	}
	if w.step < StepReview {
		w.step++
	}
	return nil
}

// Back returns to the previous step without validating
func (w *Wizard) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step > StepGuestDetails {
		w.step--
	}
}

// Validate checks the whole draft, as the review step does before submitting
func (w *Wizard) Validate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validateStep(StepReview)
}

// Reset clears personal data and selections and returns to the first step.
// The stay (hotel, room, dates, price) is kept.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Guest = models.GuestDetails{}
	w.draft.AddOns = nil
	w.draft.PromoCode = ""
	w.step = StepGuestDetails
}

func (w *Wizard) validateStep(step Step) error {
	draft := w.draft
	draft.AddOns = append([]models.AddOn(nil), w.draft.AddOns...)

	err := models.ValidateDraft(&draft, w.now())
	if err == nil {
		return nil
	}
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	prefixes, scoped := stepFields[step]
	if !scoped {
		return verr
	}
	filtered := &models.ValidationError{}
	for _, f := range verr.Fields {
		for _, p := range prefixes {
			if strings.HasPrefix(f.Field, p) {
				filtered.Add(f.Field, f.Message)
				break
			}
		}
	}
	if filtered.HasErrors() {
		return filtered
	}
	return nil
}
