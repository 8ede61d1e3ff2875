// Package ledger holds the monetary arithmetic and aggregation rules for
// pre-orders. Every monetary field in the system is a Money value; raw
// floats drift under repeated add/subtract and never enter the ledger.
package ledger

import (
	"github.com/shopspring/decimal"
)

// Money is a fixed-point currency amount backed by a decimal.
type Money struct {
	decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{decimal.Zero}
}

// FromInt builds a Money from a whole currency amount.
func FromInt(n int64) Money {
	return Money{decimal.NewFromInt(n)}
}

// FromString parses a decimal string such as "1200.50".
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{d}, nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{m.Decimal.Add(o.Decimal)}
}

// Sub returns m - o.
func (m Money) Sub(o Money) Money {
	return Money{m.Decimal.Sub(o.Decimal)}
}

// MulQty multiplies the amount by an item quantity.
func (m Money) MulQty(qty int64) Money {
	return Money{m.Decimal.Mul(decimal.NewFromInt(qty))}
}

// IsNonNegative reports whether the amount is zero or greater.
func (m Money) IsNonNegative() bool {
	return !m.Decimal.IsNegative()
}

// ClampNonNegative returns the amount, floored at zero. Display only;
// stored values keep their sign so overpayment stays visible.
func (m Money) ClampNonNegative() Money {
	if m.Decimal.IsNegative() {
		return Zero()
	}
	return m
}

// Equal reports whether two amounts are numerically equal.
func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// GreaterThan reports m > o.
func (m Money) GreaterThan(o Money) bool {
	return m.Decimal.GreaterThan(o.Decimal)
}

// LessThan reports m < o.
func (m Money) LessThan(o Money) bool {
	return m.Decimal.LessThan(o.Decimal)
}
