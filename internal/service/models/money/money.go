package money

import "github.com/shopspring/decimal"

// Monetary values are carried at full precision through intermediate math and
// rounded to 2 decimal places half-up only at the final step.

var Zero = decimal.Zero

// Round2 rounds a monetary amount to 2 decimal places half-up.
// Amounts in this system are never negative, so half-away-from-zero
// rounding is equivalent to half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts a float into a decimal amount.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// FromInt converts an integer number of whole currency units.
func FromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// RequireFromString parses a decimal amount and panics on malformed input.
// For literals in code and tests.
func RequireFromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// WithinCent reports whether two amounts differ by at most 0.01.
func WithinCent(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.New(1, -2))
}
