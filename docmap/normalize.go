package docmap

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/finbridge/finbridge/errors"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeAmount parses a currency string into a decimal, tolerating a
// leading dollar sign and thousands separators.
func NormalizeAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, errors.Mark(errors.Wrapf(err, "normalize amount %q", raw), errors.ErrValidation)
	}
	return amount, nil
}

// NormalizeDate parses a date string against the supported document layouts.
func NormalizeDate(raw string) (time.Time, error) {
	cleaned := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errors.Mark(errors.Newf("normalize date %q: no layout matched", raw), errors.ErrValidation)
}

// NormalizeName lowercases a contact name and collapses whitespace runs so
// that cosmetic variants compare equal.
func NormalizeName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// ValidEmail reports whether s looks like a single well-formed email address.
func ValidEmail(s string) bool {
	return emailPattern.FindString(s) == strings.TrimSpace(s) && s != ""
}

// ValidPhone reports whether s looks like a single phone number.
func ValidPhone(s string) bool {
	return phonePattern.FindString(s) == strings.TrimSpace(s) && s != ""
}

// ValidAmount reports whether the amount is usable on a financial record.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.Sign() > 0
}

// SanitizeString strips control characters, collapses whitespace, and
// truncates to max runes, for text destined for external-system fields
// with length limits.
func SanitizeString(s string, max int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	cleaned = whitespaceRun.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	runes := []rune(cleaned)
	if len(runes) > max {
		return string(runes[:max])
	}
	return cleaned
}
