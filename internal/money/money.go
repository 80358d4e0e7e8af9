// Package money provides decimal arithmetic helpers and Swedish-format
// amount parsing for invoice totals and line items.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero.
var Zero = decimal.Zero

// FromInt creates a decimal from an int.
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromFloat creates a decimal from a float, rounded to 2 places.
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// FromString parses a plain decimal string (period decimal separator).
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// Mul multiplies two decimals, rounded to 2 places.
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Round(2)
}

// Div divides a by b, rounded to 2 places. Returns zero on division by zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return Zero
	}
	return a.Div(b).Round(2)
}

// Sum sums a slice of decimals.
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive reports whether d > 0.
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative reports whether d >= 0.
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}

// Round rounds to the Swedish krona's 2-decimal convention.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Tolerance returns the reconciliation tolerance for a given total: a flat
// 1.00 for small totals, max(1.00, 0.5% of total) for larger ones.
func Tolerance(total decimal.Decimal) decimal.Decimal {
	pct := total.Abs().Mul(decimal.NewFromFloat(0.005))
	one := decimal.NewFromInt(1)
	if pct.GreaterThan(one) {
		return pct
	}
	return one
}

var currencyMarkers = []string{"SEK", "kr", "KR", "Kr", ":-"}

// ParseSwedish parses a Swedish-formatted amount string: comma decimal
// separator, space or period thousands separator, optional trailing currency
// marker (kr, SEK, :-). Returns an error if the cleaned string isn't numeric.
func ParseSwedish(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	for _, marker := range currencyMarkers {
		cleaned = strings.ReplaceAll(cleaned, marker, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	// Non-breaking space and regular space are both used as thousands
	// separators in Swedish formatting.
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	neg := false
	if strings.HasPrefix(cleaned, "-") {
		neg = true
		cleaned = cleaned[1:]
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	var intPart, fracPart string
	switch {
	case lastComma >= 0 && lastComma > lastDot:
		// comma is the decimal separator; any dot before it is a thousands separator
		intPart = strings.ReplaceAll(cleaned[:lastComma], ".", "")
		fracPart = cleaned[lastComma+1:]
	case lastDot >= 0 && lastDot > lastComma:
		// a bare dot with exactly 1-2 trailing digits is treated as decimal;
		// otherwise it's a thousands separator
		tail := cleaned[lastDot+1:]
		if len(tail) <= 2 {
			intPart = strings.ReplaceAll(cleaned[:lastDot], ",", "")
			fracPart = tail
		} else {
			intPart = strings.ReplaceAll(cleaned, ".", "")
		}
	default:
		intPart = cleaned
	}

	normalized := intPart
	if fracPart != "" {
		normalized += "." + fracPart
	}
	if normalized == "" {
		return Zero, fmt.Errorf("not a Swedish amount: %q", s)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return Zero, err
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2), nil
}

// LooksLikeAmount is a cheap pre-filter: does s contain digits plus the
// punctuation an amount token can legally carry.
func LooksLikeAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ',' || r == '.' || r == ' ' || r == ' ' || r == '-':
		case r == 'k' || r == 'K' || r == 'r' || r == 'R':
		case r == 'S' || r == 'E':
		case r == ':':
		default:
			return false
		}
	}
	return digits > 0
}
