package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates the number has too few or too many digits
	ErrInvalidLength = errors.New("phone number must have 10 digits, or 8 to 15 digits with an international prefix")

	// ErrInvalidPrefix indicates an Indian mobile number that does not start with 6, 7, 8 or 9
	ErrInvalidPrefix = errors.New("indian mobile numbers must start with 6, 7, 8 or 9")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits and a leading +")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

const indiaCountryCode = "91"

// phoneRegex matches an optional leading plus followed by digits only
var phoneRegex = regexp.MustCompile(`^\+?\d+$`)

// PhoneValidator handles guest phone number validation
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates a guest phone number and returns it in E.164 form.
// Accepts 9876543210, 098765 43210, +91 98765-43210 and foreign numbers like +44 20 7946 0958.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)
	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if strings.HasPrefix(sanitized, "+") {
		digits := sanitized[1:]
		if strings.HasPrefix(digits, indiaCountryCode) {
			return v.validateIndian(digits[len(indiaCountryCode):])
		}
		if len(digits) < 8 || len(digits) > 15 {
			return "", ErrInvalidLength
		}
		return sanitized, nil
	}

	switch {
	case len(sanitized) == 12 && strings.HasPrefix(sanitized, indiaCountryCode):
		return v.validateIndian(sanitized[2:])
	case len(sanitized) == 11 && strings.HasPrefix(sanitized, "0"):
		return v.validateIndian(sanitized[1:])
	case len(sanitized) == 10:
		return v.validateIndian(sanitized)
	default:
		return "", ErrInvalidLength
	}
}

func (v *PhoneValidator) validateIndian(national string) (string, error) {
	if len(national) != 10 {
		return "", ErrInvalidLength
	}
	if !v.IsValidPrefix(national) {
		return "", ErrInvalidPrefix
	}
	return "+" + indiaCountryCode + national, nil
}

// Sanitize removes separators, keeping a leading + if present
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = strings.TrimSpace(phone)
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	phone = replacer.Replace(phone)
	if strings.HasPrefix(phone, "00") && len(phone) > 10 {
		phone = "+" + phone[2:] // international dialling prefix
	}
	return phone
}

// IsValidPrefix checks if a 10-digit national number is an Indian mobile number
func (v *PhoneValidator) IsValidPrefix(national string) bool {
	if len(national) == 0 {
		return false
	}
	switch national[0] {
	case '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

// Format formats a phone number for display: +91 98765 43210
func (v *PhoneValidator) Format(phone string) (string, error) {
	normalized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(normalized, "+"+indiaCountryCode) && len(normalized) == 13 {
		return fmt.Sprintf("+91 %s %s", normalized[3:8], normalized[8:]), nil
	}
	return normalized, nil
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
