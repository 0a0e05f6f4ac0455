package currency

import (
	"errors"
	"fmt"
	"strings"

	xcurrency "golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	// ErrUnknownCurrency indicates the code is not a recognised ISO 4217 currency
	ErrUnknownCurrency = errors.New("unknown currency code")

	// ErrEmptyCurrency indicates no currency code was supplied
	ErrEmptyCurrency = errors.New("currency code cannot be empty")
)

// symbols holds display symbols for the currencies the booking site sells in.
// Anything else is rendered with its ISO code as prefix.
var symbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"AUD": "A$",
	"SGD": "S$",
	"AED": "AED ",
	"LKR": "Rs ",
}

// locales picks the digit grouping per currency. en-IN groups in lakhs and
// crores (1,23,45,678); everything else groups in thousands.
var locales = map[string]language.Tag{
	"INR": language.MustParse("en-IN"),
}

// Normalize upper-cases and validates an ISO 4217 code
func Normalize(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", ErrEmptyCurrency
	}
	unit, err := xcurrency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	return unit.String(), nil
}

// Scale returns the number of minor-unit digits for a currency (INR 2, JPY 0)
func Scale(code string) (int, error) {
	normalized, err := Normalize(code)
	if err != nil {
		return 0, err
	}
	unit := xcurrency.MustParseISO(normalized)
	scale, _ := xcurrency.Standard.Rounding(unit)
	return scale, nil
}

// Symbol returns the display prefix for a currency
func Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if s, ok := symbols[code]; ok {
		return s
	}
	return code + " "
}

// Format converts an amount in minor units to a localized display string.
// The fractional part is omitted when it is zero: 520000 INR -> "₹5,200".
func Format(amountMinor int64, code string) (string, error) {
	return format(amountMinor, code, Symbol)
}

// FormatWithCode is Format with the ISO code as prefix ("INR 5,200"), for
// documents whose fonts cannot draw currency symbols.
func FormatWithCode(amountMinor int64, code string) (string, error) {
	return format(amountMinor, code, func(c string) string { return c + " " })
}

func format(amountMinor int64, code string, prefix func(string) string) (string, error) {
	normalized, err := Normalize(code)
	if err != nil {
		return "", err
	}
	scale, err := Scale(normalized)
	if err != nil {
		return "", err
	}

	negative := amountMinor < 0
	abs := amountMinor
	if negative {
		abs = -abs
	}

	divisor := pow10(scale)
	major := abs / divisor
	minor := abs % divisor

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	b.WriteString(prefix(normalized))
	b.WriteString(group(major, normalized))
	if minor != 0 {
		b.WriteString(fmt.Sprintf(".%0*d", scale, minor))
	}
	return b.String(), nil
}

// MustFormat formats and falls back to "<amount> <code>" for unknown currencies
func MustFormat(amountMinor int64, code string) string {
	s, err := Format(amountMinor, code)
	if err != nil {
		return fmt.Sprintf("%d %s", amountMinor, strings.ToUpper(code))
	}
	return s
}

// ToMajor converts minor units to a major-unit float (display/analytics only)
func ToMajor(amountMinor int64, code string) (float64, error) {
	scale, err := Scale(code)
	if err != nil {
		return 0, err
	}
	return float64(amountMinor) / float64(pow10(scale)), nil
}

// FromMajor converts a whole major-unit amount to minor units
func FromMajor(amountMajor int64, code string) (int64, error) {
	scale, err := Scale(code)
	if err != nil {
		return 0, err
	}
	return amountMajor * pow10(scale), nil
}

func pow10(n int) int64 {
	result := int64(1)
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}

// group renders the major units with the grouping of the currency's locale
func group(v int64, code string) string {
	tag, ok := locales[code]
	if !ok {
		tag = language.English
	}
	return message.NewPrinter(tag).Sprint(number.Decimal(v))
}
