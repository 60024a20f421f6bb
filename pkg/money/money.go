// Package money holds the few currency helpers the checkout flow needs. Amounts are
// BRL values with two decimal places, stored as NUMERIC(12,2) and carried as decimal.Decimal.
// Conversion to float64 happens only when an amount leaves the process as JSON.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Round rounds to cents, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Floor raises amount to minimum when it falls below it. It never lowers an amount.
func Floor(amount, minimum decimal.Decimal) decimal.Decimal {
	return Round(decimal.Max(amount, minimum))
}

// Within reports whether a and b differ by at most tolerance once both are rounded to cents.
func Within(a, b, tolerance decimal.Decimal) bool {
	return Round(a).Sub(Round(b)).Abs().LessThanOrEqual(tolerance)
}

// Parse reads a decimal amount. A lone comma is taken as the decimal separator.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return amount, nil
}

// FromFloat converts a configured float into a cent-rounded amount.
func FromFloat(value float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(value))
}

// Float converts a cent-rounded amount for JSON responses and gateway payloads.
func Float(amount decimal.Decimal) float64 {
	return Round(amount).InexactFloat64()
}

// FloatPtr is Float for optional amounts.
func FloatPtr(amount *decimal.Decimal) *float64 {
	if amount == nil {
		return nil
	}
	value := Float(*amount)
	return &value
}
