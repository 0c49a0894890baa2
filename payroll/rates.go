/*
Package payroll computes monthly compensation for the sales team.

PURPOSE:
  Combines rate overrides, product rewards, daily and monthly tier tables,
  the team competition and shift schedules into one payroll line per sales
  manager. Everything here is a pure function of its inputs.

KEY CONCEPTS:
  - RateResolver (rates.go): month override > default override > global base
  - TeamGroups (teams.go): fixed, ordered groups of geos competing monthly
  - Calculator (calculator.go): the per-manager breakdown

FORMULA:
  perShift   = effectiveBase / 15
  shiftPay   = regular * perShift + multiGeo * (perShift + 10)
  total      = shiftPay + product + daily + monthly + team + bonus - penalty

SEE ALSO:
  - sales/types.go: RateOverride, ProductRate, TierRule, ScheduleEntry
  - factory/settings.go: Tier decoding
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// EFFECTIVE RATE
// =============================================================================

// EffectiveRate is the ruleset that applies to one manager for one month.
// When HasOverride is true every field comes from the override; global and
// override values are never mixed.
type EffectiveRate struct {
	BaseRate    decimal.Decimal
	Bonus       decimal.Decimal
	Penalty     decimal.Decimal
	HasOverride bool
	Scope       string // month key, "default", or "" without override
}

// =============================================================================
// RATE RESOLVER
// =============================================================================

type overrideKey struct {
	ManagerID generic.ManagerID
	Scope     string
}

// RateResolver resolves overrides with month > default > global precedence.
type RateResolver struct {
	overrides  map[overrideKey]sales.RateOverride
	baseSalary decimal.Decimal
}

// NewRateResolver indexes overrides by (manager, scope). If the input
// violates the one-override-per-scope invariant, the later row wins.
func NewRateResolver(overrides []sales.RateOverride, baseSalary decimal.Decimal) *RateResolver {
	idx := make(map[overrideKey]sales.RateOverride, len(overrides))
	for _, o := range overrides {
		idx[overrideKey{ManagerID: o.ManagerID, Scope: o.Scope}] = o
	}
	return &RateResolver{overrides: idx, baseSalary: baseSalary}
}

// BaseSalary returns the global base salary used without overrides.
func (r *RateResolver) BaseSalary() decimal.Decimal { return r.baseSalary }

// Resolve returns the effective rate for a manager and month.
func (r *RateResolver) Resolve(managerID generic.ManagerID, month generic.MonthKey) EffectiveRate {
	for _, scope := range []string{string(month), sales.DefaultScope} {
		if o, ok := r.overrides[overrideKey{ManagerID: managerID, Scope: scope}]; ok {
			return EffectiveRate{
				BaseRate:    o.BaseRate,
				Bonus:       o.Bonus,
				Penalty:     o.Penalty,
				HasOverride: true,
				Scope:       scope,
			}
		}
	}
	return EffectiveRate{
		BaseRate: r.baseSalary,
		Bonus:    decimal.Zero,
		Penalty:  decimal.Zero,
	}
}
