// Package money defines the Amount value type: a fixed-scale decimal with an
// attached currency label (C1 of SPEC_FULL.md). Backed by shopspring/decimal
// rather than a hand-rolled fixed-point type or a binary float, the same
// way the pack's timeoff/resource-engine repo represents quantities it
// cannot afford to round incorrectly.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every Amount is rounded to. The
// spec only requires scale 2 ("scale 2 suffices for this spec").
const Scale = 2

// Amount is a signed, scale-2 decimal quantity labeled with a currency.
// Two Amounts only compose (Add, Sub, compare) when their currencies match.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// New builds an Amount from a decimal.Decimal, rounding to Scale.
func New(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value.Round(Scale), Currency: currency}
}

// NewFromString parses a decimal string ("100.00") into an Amount.
func NewFromString(s, currency string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return New(d, currency), nil
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Amount {
	return Amount{Value: decimal.Zero, Currency: currency}
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Value.StringFixed(Scale), a.Currency)
}

// sameCurrency panics on a cross-currency operation — this is a programmer
// error (the state machine and ledger core never mix currencies within one
// transaction), not a caller-recoverable condition.
func (a Amount) sameCurrency(b Amount) {
	if a.Currency != b.Currency {
		panic(fmt.Sprintf("money: currency mismatch %s vs %s", a.Currency, b.Currency))
	}
}

func (a Amount) Add(b Amount) Amount {
	a.sameCurrency(b)
	return Amount{Value: a.Value.Add(b.Value).Round(Scale), Currency: a.Currency}
}

func (a Amount) Sub(b Amount) Amount {
	a.sameCurrency(b)
	return Amount{Value: a.Value.Sub(b.Value).Round(Scale), Currency: a.Currency}
}

func (a Amount) Neg() Amount {
	return Amount{Value: a.Value.Neg(), Currency: a.Currency}
}

func (a Amount) IsZero() bool     { return a.Value.IsZero() }
func (a Amount) IsPositive() bool { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool { return a.Value.IsNegative() }

func (a Amount) Equal(b Amount) bool {
	return a.Currency == b.Currency && a.Value.Equal(b.Value)
}

func (a Amount) GreaterThan(b Amount) bool {
	a.sameCurrency(b)
	return a.Value.GreaterThan(b.Value)
}

func (a Amount) LessThan(b Amount) bool {
	a.sameCurrency(b)
	return a.Value.LessThan(b.Value)
}

// Numeric returns the plain decimal string suitable for a NUMERIC(18,2)
// column bind parameter.
func (a Amount) Numeric() string {
	return a.Value.StringFixed(Scale)
}

// ValueSQL returns the amount's decimal component as a driver.Value for a
// NUMERIC parameter. It is not named Value, so Amount does not implement
// driver.Valuer.
func (a Amount) ValueSQL() (driver.Value, error) {
	return a.Numeric(), nil
}

// MarshalJSON renders the amount as its decimal string, matching the
// "decimal string" wire format spec.md §6 specifies for request/response
// bodies ("amount (decimal string, >0)").
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", a.Value.StringFixed(Scale))), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) >= 2 && data[0] == '"' {
		s = string(data[1 : len(data)-1])
	} else {
		s = string(data)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a.Value = d.Round(Scale)
	return nil
}
