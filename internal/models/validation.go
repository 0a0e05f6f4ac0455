package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/staywell/booking-funnel/pkg/currency"
	phonevalidator "github.com/staywell/booking-funnel/pkg/validator"
)

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func draftValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
		// report json names so field errors match what the form posted
		structValidator.RegisterTagNameFunc(jsonFieldName)
	})
	return structValidator
}

// ValidateDraft checks a booking draft before it is sent to the backend.
// On success the guest phone is normalised to E.164 and the currency upper-cased.
func ValidateDraft(draft *BookingDraft, now time.Time) error {
	verr := &ValidationError{}

	if err := draftValidator().Struct(draft); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate draft: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.Add(fieldPath(fe), describeTag(fe))
		}
	}

	if draft.CheckIn.IsZero() {
		verr.Add("checkIn", "is required")
	}
	if draft.CheckOut.IsZero() {
		verr.Add("checkOut", "is required")
	}
	if !draft.CheckIn.IsZero() && !draft.CheckOut.IsZero() {
		if !draft.CheckIn.Before(draft.CheckOut) {
			verr.Add("checkOut", "must be after check-in")
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if draft.CheckIn.Before(today) {
			verr.Add("checkIn", "cannot be in the past")
		}
	}

	if draft.Currency != "" {
		code, err := currency.Normalize(draft.Currency)
		if err != nil {
			verr.Add("currency", "is not a supported ISO 4217 code")
		} else {
			draft.Currency = code
		}
	}

	if draft.Guest.Phone != "" {
		normalized, err := phonevalidator.NewPhoneValidator().Validate(draft.Guest.Phone)
		if err != nil {
			verr.Add("guest.phone", err.Error())
		} else {
			draft.Guest.Phone = normalized
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// fieldPath strips the root struct name: BookingDraft.guest.email -> guest.email
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
