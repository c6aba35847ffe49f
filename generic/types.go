/*
Package generic provides the domain-agnostic building blocks of the report engine.

PURPOSE:
  This package contains the types and algorithms that do not know anything
  about bonuses, projects or milestones: exact hour arithmetic, day-granular
  dates, periods, report-scope rounding and time-block partitioning. The
  bonus package builds the reconciliation rules on top of it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours: A quantity of hours backed by decimal.Decimal
  - ParseLocaleDecimal: "1.234,56" -> 1234.56 (German number format)
  - Ratio helpers used by the eligibility rules

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal, never float64, so 4.0/4.0 is exactly 1
  2. Immutability: every operation returns a new value
  3. No division by zero: Ratio reports ok=false for a zero denominator

USAGE:
  soll := generic.NewHours(4)
  ist := generic.MustHours("3,5")
  ratio, ok := ist.Ratio(soll) // 0.875, true

SEE ALSO:
  - time.go: Date type
  - period.go: Period and scope rounding
  - partition.go: TimeBlock partitioning
*/
package generic

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - Exact quantity of booked or budgeted hours
// =============================================================================

type Hours struct {
	Value decimal.Decimal
}

func NewHours(value float64) Hours { return Hours{Value: decimal.NewFromFloat(value)} }
func NewHoursFromInt(value int) Hours { return Hours{Value: decimal.NewFromInt(int64(value))} }
func HoursOf(d decimal.Decimal) Hours { return Hours{Value: d} }
func ZeroHours() Hours { return Hours{Value: decimal.Zero} }

func (h Hours) Add(o Hours) Hours { return Hours{Value: h.Value.Add(o.Value)} }
func (h Hours) Sub(o Hours) Hours { return Hours{Value: h.Value.Sub(o.Value)} }
func (h Hours) Mul(s decimal.Decimal) Hours { return Hours{Value: h.Value.Mul(s)} }
func (h Hours) IsZero() bool { return h.Value.IsZero() }
func (h Hours) IsNegative() bool { return h.Value.IsNegative() }
func (h Hours) IsPositive() bool { return h.Value.IsPositive() }
func (h Hours) Equal(o Hours) bool { return h.Value.Equal(o.Value) }
func (h Hours) GreaterThan(o Hours) bool { return h.Value.GreaterThan(o.Value) }
func (h Hours) LessThan(o Hours) bool { return h.Value.LessThan(o.Value) }
func (h Hours) LessThanOrEqual(o Hours) bool { return h.Value.LessThanOrEqual(o.Value) }
func (h Hours) Float64() float64 {
	f, _ := h.Value.Float64()
	return f
}
func (h Hours) String() string { return h.Value.StringFixed(2) }

// Ratio returns h / denom. ok is false when denom is zero.
func (h Hours) Ratio(denom Hours) (decimal.Decimal, bool) {
	if denom.IsZero() {
		return decimal.Zero, false
	}
	return h.Value.Div(denom.Value), true
}

// Percent returns the ratio scaled to 100, rounded to two places.
func (h Hours) Percent(denom Hours) (decimal.Decimal, bool) {
	r, ok := h.Ratio(denom)
	if !ok {
		return decimal.Zero, false
	}
	return r.Mul(decimal.NewFromInt(100)).Round(2), true
}

// MarshalJSON renders hours as a plain JSON number with two decimals.
func (h Hours) MarshalJSON() ([]byte, error) {
	return []byte(h.Value.StringFixed(2)), nil
}

func (h *Hours) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	h.Value = d
	return nil
}

// SumHours adds up a list of hours.
func SumHours(hs ...Hours) Hours {
	total := ZeroHours()
	for _, h := range hs {
		total = total.Add(h)
	}
	return total
}

// =============================================================================
// LOCALE DECIMAL PARSING
// =============================================================================

// ParseLocaleDecimal parses numbers written with a comma as fractional
// separator and dots as thousands separators ("1.234,56").
// An empty string is treated as zero (absent value).
func ParseLocaleDecimal(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" || raw == "-" {
		return decimal.Zero, nil
	}
	cleaned := strings.ReplaceAll(raw, "\u00a0", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "number", Value: raw, Reason: "not a decimal number", Err: ErrInvalidNumber}
	}
	return d, nil
}

// ParseLocaleHours is ParseLocaleDecimal wrapped into Hours.
func ParseLocaleHours(s string) (Hours, error) {
	d, err := ParseLocaleDecimal(s)
	if err != nil {
		return Hours{}, err
	}
	return Hours{Value: d}, nil
}

// MustHours parses a locale decimal and panics on failure. Test helper.
func MustHours(s string) Hours {
	h, err := ParseLocaleHours(s)
	if err != nil {
		panic(err)
	}
	return h
}
