package payroll

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// BUSINESS CONSTANTS
// =============================================================================

var (
	// ShiftsPerBaseRate divides the base rate into a per-shift rate. It is a
	// fixed business constant, not derived from the month's actual shifts.
	ShiftsPerBaseRate = decimal.NewFromInt(15)

	// MultiGeoPremium is added to every shift that covers several geos.
	MultiGeoPremium = decimal.NewFromInt(10)

	// DefaultTeamAward is paid to each member of the winning team group.
	DefaultTeamAward = decimal.NewFromInt(30)
)

// =============================================================================
// OUTPUT
// =============================================================================

// DayTier records the daily tier outcome for one calendar day.
type DayTier struct {
	Day    string // YYYY-MM-DD
	Sales  int
	Reward decimal.Decimal
	Tier   int // index of the matched rule, -1 when none
}

// Line is one manager's payroll breakdown for a month.
type Line struct {
	ManagerID  generic.ManagerID
	Name       string
	Role       sales.Role
	PrimaryGeo string
	TeamGroup  string

	SalesCount int
	Revenue    decimal.Decimal

	Rate              EffectiveRate
	EffectiveBaseRate decimal.Decimal
	PerShiftRate      decimal.Decimal
	RegularShifts     int
	MultiGeoShifts    int

	ShiftPay     decimal.Decimal
	ProductBonus decimal.Decimal
	DailyBonus   decimal.Decimal
	MonthlyBonus decimal.Decimal
	TeamBonus    decimal.Decimal
	Bonus        decimal.Decimal // from override
	Penalty      decimal.Decimal // from override
	TotalSalary  decimal.Decimal

	Days []DayTier
}

// Payroll is the result for one month.
type Payroll struct {
	Month generic.MonthKey
	Lines []Line
	Teams TeamResult
	Total decimal.Decimal
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator holds the month-independent compensation configuration.
type Calculator struct {
	Settings     sales.KPISettings
	Rates        *RateResolver
	ProductRates []sales.ProductRate
	TeamGroups   TeamGroups
	TeamAward    decimal.Decimal
	Location     *time.Location
	Logger       *zap.Logger
}

// Input is the per-month data. Payments may span any range; the calculator
// restricts them to the month itself.
type Input struct {
	Month     generic.MonthKey
	Payments  []sales.AttributedPayment
	Managers  []sales.Manager
	Schedules []sales.ScheduleEntry
}

// Calculate produces a payroll line for every manager whose role is Sales,
// SeniorSales or SalesTaro. Inputs are not modified.
func (c *Calculator) Calculate(in Input) Payroll {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rates := c.Rates
	if rates == nil {
		rates = NewRateResolver(nil, c.Settings.BaseSalary)
	}
	award := c.TeamAward
	if award.IsZero() {
		award = DefaultTeamAward
	}

	period := in.Month.Period()

	var qualifying []sales.Manager
	for _, m := range in.Managers {
		if m.Role.IsSales() {
			qualifying = append(qualifying, m)
		}
	}

	byManager := make(map[generic.ManagerID][]sales.AttributedPayment)
	for _, p := range in.Payments {
		if p.ManagerID == "" || !period.ContainsTime(p.TransactionDate, c.Location) {
			continue
		}
		byManager[p.ManagerID] = append(byManager[p.ManagerID], p)
	}

	shifts := make(map[generic.ManagerID][]sales.ScheduleEntry)
	for _, s := range in.Schedules {
		if period.Contains(s.Date) {
			shifts[s.ManagerID] = append(shifts[s.ManagerID], s)
		}
	}

	salesCount := make(map[generic.ManagerID]int, len(qualifying))
	for _, m := range qualifying {
		salesCount[m.ID] = len(byManager[m.ID])
	}
	teams := c.TeamGroups.Compete(qualifying, salesCount)

	result := Payroll{Month: in.Month, Teams: teams, Total: decimal.Zero}
	for _, m := range qualifying {
		line := c.line(m, in.Month, byManager[m.ID], shifts[m.ID], rates, teams, award)
		result.Total = result.Total.Add(line.TotalSalary)
		result.Lines = append(result.Lines, line)
	}

	logger.Debug("payroll calculated",
		zap.String("month", string(in.Month)),
		zap.Int("managers", len(result.Lines)),
		zap.String("team_winner", teams.Winner),
		zap.String("total", result.Total.StringFixed(2)),
	)
	return result
}

func (c *Calculator) line(
	m sales.Manager,
	month generic.MonthKey,
	payments []sales.AttributedPayment,
	shifts []sales.ScheduleEntry,
	rates *RateResolver,
	teams TeamResult,
	award decimal.Decimal,
) Line {
	rate := rates.Resolve(m.ID, month)
	group, _ := c.TeamGroups.GroupOf(m.PrimaryGeo)

	line := Line{
		ManagerID:         m.ID,
		Name:              m.Name,
		Role:              m.Role,
		PrimaryGeo:        m.PrimaryGeo,
		TeamGroup:         group,
		SalesCount:        len(payments),
		Revenue:           decimal.Zero,
		Rate:              rate,
		EffectiveBaseRate: rate.BaseRate,
		Bonus:             rate.Bonus,
		Penalty:           rate.Penalty,
		TeamBonus:         decimal.Zero,
	}
	for _, p := range payments {
		line.Revenue = line.Revenue.Add(p.Amount)
	}

	line.ProductBonus = c.productBonus(payments)
	line.Days, line.DailyBonus = c.dailyBonus(payments)
	line.MonthlyBonus = c.monthlyBonus(len(payments))

	if teams.Winner != "" && group == teams.Winner {
		line.TeamBonus = award
	}

	line.PerShiftRate = line.EffectiveBaseRate.Div(ShiftsPerBaseRate)
	for _, s := range shifts {
		if s.IsMultiGeo() {
			line.MultiGeoShifts++
		} else {
			line.RegularShifts++
		}
	}
	line.ShiftPay = line.PerShiftRate.Mul(decimal.NewFromInt(int64(line.RegularShifts))).
		Add(line.PerShiftRate.Add(MultiGeoPremium).Mul(decimal.NewFromInt(int64(line.MultiGeoShifts))))

	line.TotalSalary = line.ShiftPay.
		Add(line.ProductBonus).
		Add(line.DailyBonus).
		Add(line.MonthlyBonus).
		Add(line.TeamBonus).
		Add(line.Bonus).
		Sub(line.Penalty)
	return line
}

// =============================================================================
// BONUS RULES
// =============================================================================

// MatchProductRate returns the first rate whose pattern is a case-insensitive
// substring of the product name. Overlapping patterns resolve to the earliest
// rate; empty patterns never match.
func MatchProductRate(rates []sales.ProductRate, productName string) (sales.ProductRate, bool) {
	name := strings.ToLower(productName)
	r, _, ok := generic.FirstMatch(rates, func(r sales.ProductRate) bool {
		pattern := strings.ToLower(strings.TrimSpace(r.Pattern))
		return pattern != "" && strings.Contains(name, pattern)
	})
	return r, ok
}

// MatchTier returns the first tier whose range contains count.
func MatchTier(tiers []sales.TierRule, count int) (sales.TierRule, int, bool) {
	return generic.FirstMatch(tiers, func(t sales.TierRule) bool { return t.Contains(count) })
}

func (c *Calculator) productBonus(payments []sales.AttributedPayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if r, ok := MatchProductRate(c.ProductRates, p.ProductName); ok {
			total = total.Add(r.RewardPerSale)
		}
	}
	return total
}

func (c *Calculator) dailyBonus(payments []sales.AttributedPayment) ([]DayTier, decimal.Decimal) {
	counts := make(map[string]int)
	for _, p := range payments {
		counts[generic.DayOf(p.TransactionDate, c.Location).String()]++
	}

	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)

	total := decimal.Zero
	breakdown := make([]DayTier, 0, len(days))
	for _, d := range days {
		dt := DayTier{Day: d, Sales: counts[d], Reward: decimal.Zero, Tier: -1}
		if tier, idx, ok := MatchTier(c.Settings.DailyTiers, counts[d]); ok {
			dt.Reward = tier.Reward
			dt.Tier = idx
			total = total.Add(tier.Reward)
		}
		breakdown = append(breakdown, dt)
	}
	return breakdown, total
}

func (c *Calculator) monthlyBonus(count int) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	if tier, _, ok := MatchTier(c.Settings.MonthlyTiers, count); ok {
		return tier.Reward
	}
	return decimal.Zero
}
