package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/astropanel/sales-engine/audit"
	"github.com/astropanel/sales-engine/funnel"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/payroll"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options carries configuration that is not part of the store.
type Options struct {
	// Month selects the payroll and schedule-audit month. Empty means the
	// current month according to Clock.
	Month generic.MonthKey

	Clock    generic.Clock
	Location *time.Location

	// FallbackBaseSalary is used when the store has no KPI settings row.
	FallbackBaseSalary decimal.Decimal

	TeamGroups payroll.TeamGroups
	TeamAward  decimal.Decimal

	RequiredGeos    []string
	ExcludedTargets []string

	Funnel funnel.Filter

	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) month() generic.MonthKey {
	if o.Month != "" {
		return o.Month
	}
	return generic.Today(o.Clock, o.Location).MonthKey()
}

func (o Options) teamGroups() payroll.TeamGroups {
	if len(o.TeamGroups) == 0 {
		return payroll.DefaultTeamGroups()
	}
	return o.TeamGroups
}

// =============================================================================
// DERIVED STATE
// =============================================================================

// DerivedState is everything the dashboard shows, computed from one snapshot.
type DerivedState struct {
	Month       generic.MonthKey
	Attributed  []sales.AttributedPayment
	Ranks       sales.Ranks
	Attribution sales.AttributionSummary
	Payroll     payroll.Payroll
	Anomalies   audit.Report
	Schedule    audit.ScheduleReport
	Funnel      funnel.Funnel
	Settings    sales.KPISettings
	ComputedAt  time.Time

	// Snapshot is the input the state was computed from. Read-only.
	Snapshot *Snapshot
}

// effectiveSettings applies the configured fallback when the store has none.
func effectiveSettings(snap *Snapshot, opts Options) sales.KPISettings {
	if snap.HasSettings {
		return snap.Settings
	}
	opts.logger().Warn("kpi settings missing, using configured base salary",
		zap.String("base_salary", opts.FallbackBaseSalary.String()))
	return sales.KPISettings{BaseSalary: opts.FallbackBaseSalary}
}

func calculator(snap *Snapshot, settings sales.KPISettings, opts Options) *payroll.Calculator {
	return &payroll.Calculator{
		Settings:     settings,
		Rates:        payroll.NewRateResolver(snap.RateOverrides, settings.BaseSalary),
		ProductRates: snap.ProductRates,
		TeamGroups:   opts.teamGroups(),
		TeamAward:    opts.TeamAward,
		Location:     opts.Location,
		Logger:       opts.logger(),
	}
}

// ComputeAll derives every view from snap. It is pure: the same snapshot and
// options always give the same result, and snap is not modified.
func ComputeAll(snap *Snapshot, opts Options) *DerivedState {
	month := opts.month()
	settings := effectiveSettings(snap, opts)

	attributed := sales.AttributeAll(snap.Payments, snap.Leads)
	ranks := sales.RankAll(snap.Payments)

	pay := calculator(snap, settings, opts).Calculate(payroll.Input{
		Month:     month,
		Payments:  attributed,
		Managers:  snap.Managers,
		Schedules: snap.Schedules,
	})

	detector := audit.NewAnomalyDetector(ranks, snap.AuditExceptions, opts.Clock, opts.Location)
	auditor := audit.NewScheduleAuditor(snap.Managers, opts.RequiredGeos, opts.ExcludedTargets)

	filter := opts.Funnel
	if filter.Location == nil {
		filter.Location = opts.Location
	}

	state := &DerivedState{
		Month:       month,
		Attributed:  attributed,
		Ranks:       ranks,
		Attribution: sales.Summarize(attributed),
		Payroll:     pay,
		Anomalies:   detector.Detect(attributed),
		Schedule:    auditor.Audit(month, snap.Schedules),
		Funnel:      funnel.Aggregate(snap.Payments, ranks, sales.NewManagerDirectory(snap.Managers), filter),
		Settings:    settings,
		ComputedAt:  time.Now(),
		Snapshot:    snap,
	}

	opts.logger().Info("derived state computed",
		zap.String("month", month.String()),
		zap.Int("payments", len(snap.Payments)),
		zap.Int("payroll_lines", len(pay.Lines)),
		zap.Int("flagged", len(state.Anomalies.FlaggedIDs())),
	)
	return state
}

// ComputePayrollMonths calculates payroll for several months in parallel.
// The snapshot's schedules must cover every requested month. Results keep the
// order of months.
func ComputePayrollMonths(ctx context.Context, snap *Snapshot, months []generic.MonthKey, opts Options) ([]payroll.Payroll, error) {
	settings := effectiveSettings(snap, opts)
	calc := calculator(snap, settings, opts)
	attributed := sales.AttributeAll(snap.Payments, snap.Leads)

	results := make([]payroll.Payroll, len(months))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, month := range months {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = calc.Calculate(payroll.Input{
				Month:     month,
				Payments:  attributed,
				Managers:  snap.Managers,
				Schedules: snap.Schedules,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
