package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhoneValidator(t *testing.T) {
	validator := NewPhoneValidator()
	assert.NotNil(t, validator)
}

func TestValidate_ValidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	validNumbers := []struct {
		input    string
		expected string
		name     string
	}{
		{"9876543210", "+919876543210", "National format"},
		{"98765 43210", "+919876543210", "With spaces"},
		{"98765-43210", "+919876543210", "With dashes"},
		{"09876543210", "+919876543210", "With trunk zero"},
		{"919876543210", "+919876543210", "With country code"},
		{"+91 98765 43210", "+919876543210", "With plus and country code"},
		{"(+91) 6123456789", "+916123456789", "Starts with 6"},
		{"+44 20 7946 0958", "+442079460958", "UK number"},
		{"0044 20 7946 0958", "+442079460958", "UK with 00 prefix"},
		{"+1 (415) 555-2671", "+14155552671", "US number"},
	}

	for _, tc := range validNumbers {
		t.Run(tc.name, func(t *testing.T) {
			normalized, err := validator.Validate(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, normalized)
		})
	}
}

func TestValidate_InvalidNumbers(t *testing.T) {
	validator := NewPhoneValidator()

	invalidNumbers := []struct {
		input       string
		expectedErr error
		name        string
	}{
		{"", ErrEmptyPhone, "Empty string"},
		{"   ", ErrEmptyPhone, "Whitespace"},
		{"12345", ErrInvalidLength, "Too short"},
		{"98765432101", ErrInvalidLength, "Eleven digits without trunk zero"},
		{"5876543210", ErrInvalidPrefix, "Indian number starting with 5"},
		{"+915876543210", ErrInvalidPrefix, "International Indian starting with 5"},
		{"98765abcde", ErrInvalidFormat, "Contains letters"},
		{"98765+43210", ErrInvalidFormat, "Plus in the middle"},
		{"+1234567", ErrInvalidLength, "International too short"},
	}

	for _, tc := range invalidNumbers {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.Validate(tc.input)
			assert.Error(t, err)
			assert.Equal(t, tc.expectedErr, err)
		})
	}
}

func TestSanitize(t *testing.T) {
	validator := NewPhoneValidator()

	tests := []struct {
		input    string
		expected string
		name     string
	}{
		{"9876543210", "9876543210", "Already clean"},
		{"98765 43210", "9876543210", "With spaces"},
		{"(+91) 98765.43210", "+919876543210", "Mixed separators"},
		{"  98765-43210  ", "9876543210", "Surrounding spaces"},
		{"0044 20 7946 0958", "+442079460958", "International dialling prefix"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, validator.Sanitize(tc.input))
		})
	}
}

func TestIsValidPrefix(t *testing.T) {
	validator := NewPhoneValidator()

	for _, phone := range []string{"6123456789", "7123456789", "8123456789", "9123456789"} {
		t.Run(phone[:1], func(t *testing.T) {
			assert.True(t, validator.IsValidPrefix(phone))
		})
	}

	for _, phone := range []string{"0123456789", "1123456789", "5123456789"} {
		t.Run(phone[:1], func(t *testing.T) {
			assert.False(t, validator.IsValidPrefix(phone))
		})
	}

	assert.False(t, validator.IsValidPrefix(""))
}

func TestFormat(t *testing.T) {
	validator := NewPhoneValidator()

	formatted, err := validator.Format("9876543210")
	require.NoError(t, err)
	assert.Equal(t, "+91 98765 43210", formatted)

	formatted, err = validator.Format("+44 20 7946 0958")
	require.NoError(t, err)
	assert.Equal(t, "+442079460958", formatted)

	_, err = validator.Format("invalid")
	assert.Error(t, err)
}

func TestIsValid(t *testing.T) {
	validator := NewPhoneValidator()
	assert.True(t, validator.IsValid("9876543210"))
	assert.False(t, validator.IsValid("12"))
}
