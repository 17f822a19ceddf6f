/*
money.go - Fixed-point currency values

PURPOSE:
  Money is the single currency type used across the engine. It stores an
  exact count of minor units (paise) in an int64 - no floating point is
  ever involved in stored or compared values.

ROUNDING POLICY:
  - Storage and arithmetic are exact. Add/Sub never round.
  - Splitting a principal across installments never discards a remainder;
    the schedule builder assigns leftover minor units to the earliest
    installments (see schedule.go).
  - CeilToWhole rounds UP to the next whole currency unit and exists for
    display only. It must never feed back into stored amounts.

PARSING/FORMATTING:
  String conversion goes through shopspring/decimal so "2667.50" parses
  exactly into 266750 minor units and formats back without drift. JSON
  values are 2-decimal strings, never floats.

SEE ALSO:
  - schedule.go: remainder distribution when dividing a principal
  - aggregate.go: invariant checks summing Money values
*/
package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// minorPerUnit is the number of minor units in one whole currency unit.
const minorPerUnit = 100

// Money is an exact amount in minor units. The zero value is zero currency.
type Money int64

// NewMoney returns a Money holding the given count of minor units.
func NewMoney(minor int64) Money { return Money(minor) }

// MoneyFromUnits returns a Money for a whole number of currency units.
func MoneyFromUnits(units int64) Money { return Money(units * minorPerUnit) }

// ParseMoney converts a decimal string ("2667.50") into minor units.
// Amounts with sub-minor-unit precision are rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Mul(decimal.NewFromInt(minorPerUnit))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has sub-minor-unit precision", s)
	}
	return Money(minor.IntPart()), nil
}

// MustParseMoney is ParseMoney for constants in tests and fixtures.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// =============================================================================
// ARITHMETIC - exact, no rounding
// =============================================================================

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money        { return -m }

func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// Cmp returns -1, 0 or 1 as m is less than, equal to, or greater than o.
func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

func (m Money) IsZero() bool     { return m == 0 }
func (m Money) IsNegative() bool { return m < 0 }
func (m Money) IsPositive() bool { return m > 0 }

func (m Money) Min(o Money) Money {
	if m < o {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m > o {
		return m
	}
	return o
}

// Minor returns the raw minor-unit count.
func (m Money) Minor() int64 { return int64(m) }

// =============================================================================
// DISPLAY - decimal-backed, never feeds back into storage
// =============================================================================

// Decimal returns the exact decimal value in whole currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String formats the amount with two decimal places, e.g. "2667.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// CeilToWhole rounds up to the next whole currency unit. Display only.
func (m Money) CeilToWhole() Money {
	ceiled := m.Decimal().Ceil().Mul(decimal.NewFromInt(minorPerUnit))
	return Money(ceiled.IntPart())
}

// MarshalJSON renders Money as a fixed 2-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a bare number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Bare JSON number: parse its exact decimal representation.
		s = string(data)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
