/*
Package generic provides the domain-agnostic primitives of the sales engine.

PURPOSE:
  This package contains the small building blocks every engine component
  shares: money arithmetic, calendar days, month periods, sentinel errors and
  the ordered first-match rule evaluator. Nothing in here knows what a
  payment, a manager or a tier is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal helpers (EUR amounts, rewards, salaries)
  - MonthKey: "YYYY-MM" identifier of a payroll month
  - Type-safe identifiers for payments, managers and audit exceptions

DESIGN PRINCIPLES:
  1. Precision: Money uses decimal.Decimal, never float64
  2. Type Safety: Strong typing for IDs prevents mixing payment/manager IDs
  3. Purity: Nothing in this package performs I/O

USAGE:
  amount := generic.MustParseDecimal("49.99")
  key, err := generic.ParseMonthKey("2024-03")
  period := key.Period()

SEE ALSO:
  - period.go: Period and month boundaries
  - rules.go: First-match rule evaluation
  - errors.go: Sentinel errors
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

func NewMoney(value float64) decimal.Decimal { return decimal.NewFromFloat(value) }
func NewMoneyFromInt(value int) decimal.Decimal { return decimal.NewFromInt(int64(value)) }

// MustParseDecimal parses s, returning zero for malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// CentsKey renders d rounded to two decimal places, so 49.99 and 49.990
// produce the same key.
func CentsKey(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PaymentID string
type ManagerID string
type ExceptionID string

// =============================================================================
// MONTH KEY
// =============================================================================

// MonthKey identifies a calendar month as "YYYY-MM". It is also the scope key
// of month-specific rate overrides.
type MonthKey string

const monthKeyLayout = "2006-01"

// ParseMonthKey validates s and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse(monthKeyLayout, s); err != nil {
		return "", &MonthKeyError{Input: s}
	}
	return MonthKey(s), nil
}

// MonthKeyOf returns the month containing t in loc.
func MonthKeyOf(t time.Time, loc *time.Location) MonthKey {
	if loc == nil {
		loc = time.UTC
	}
	return MonthKey(t.In(loc).Format(monthKeyLayout))
}

// NewMonthKey builds a key from its parts.
func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

func (k MonthKey) String() string { return string(k) }

// Time returns the first instant of the month in UTC. An invalid key yields
// the zero time.
func (k MonthKey) Time() time.Time {
	t, err := time.Parse(monthKeyLayout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Period returns [first day, last day] of the month.
func (k MonthKey) Period() Period {
	t := k.Time()
	return Period{
		Start: StartOfMonth(t.Year(), t.Month()),
		End:   EndOfMonth(t.Year(), t.Month()),
	}
}

// Next returns the following month.
func (k MonthKey) Next() MonthKey {
	t := k.Time().AddDate(0, 1, 0)
	return NewMonthKey(t.Year(), t.Month())
}

// MonthsBetween returns every month key from "from" to "to" inclusive.
// It returns nil when to precedes from.
func MonthsBetween(from, to MonthKey) []MonthKey {
	if to.Time().Before(from.Time()) {
		return nil
	}
	var keys []MonthKey
	for k := from; !k.Time().After(to.Time()); k = k.Next() {
		keys = append(keys, k)
	}
	return keys
}
