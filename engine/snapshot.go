/*
Package engine wires the pure components into one recompute pipeline.

PURPOSE:
  The dashboard's derived views (payroll, anomalies, funnel, attribution
  cards, schedule audit) are all functions of one immutable Snapshot. The
  engine loads that snapshot from a store, computes every view from scratch,
  and publishes the result. There is no incremental update path.

PIPELINE:
  Snapshot ──► AttributeAll ──► RankAll (full history, once)
                   │                 │
                   ├──► payroll ◄────┤
                   ├──► anomalies ◄──┤
                   └──► funnel ◄─────┘
  Schedules ──► payroll, schedule audit

KEY TYPES:
  - Snapshot (snapshot.go): frozen copies of every collection
  - ComputeAll (compute.go): Snapshot + Options -> DerivedState
  - Recomputer (recomputer.go): supersedes stale recomputes, publishes state

SEE ALSO:
  - sales/store.go: Source interface
  - api/handlers.go: Serves DerivedState
*/
package engine

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable view of the store. Components never modify it.
type Snapshot struct {
	Payments        []sales.Payment
	Leads           []sales.Lead
	Managers        []sales.Manager
	Schedules       []sales.ScheduleEntry
	SchedulePeriod  generic.Period
	RateOverrides   []sales.RateOverride
	ProductRates    []sales.ProductRate
	Settings        sales.KPISettings
	HasSettings     bool
	AuditExceptions []sales.AuditException
	LoadedAt        time.Time
}

// Load reads every collection from src concurrently. Schedules are limited to
// schedulePeriod; everything else is the full history.
func Load(ctx context.Context, src sales.Source, schedulePeriod generic.Period) (*Snapshot, error) {
	snap := &Snapshot{SchedulePeriod: schedulePeriod}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Payments, err = src.ListPayments(gctx)
		return eris.Wrap(err, "load payments")
	})
	g.Go(func() (err error) {
		snap.Leads, err = src.ListLeads(gctx)
		return eris.Wrap(err, "load leads")
	})
	g.Go(func() (err error) {
		snap.Managers, err = src.ListManagers(gctx)
		return eris.Wrap(err, "load managers")
	})
	g.Go(func() (err error) {
		snap.Schedules, err = src.ListSchedules(gctx, schedulePeriod)
		return eris.Wrap(err, "load schedules")
	})
	g.Go(func() (err error) {
		snap.RateOverrides, err = src.ListRateOverrides(gctx)
		return eris.Wrap(err, "load rate overrides")
	})
	g.Go(func() (err error) {
		snap.ProductRates, err = src.ListProductRates(gctx)
		return eris.Wrap(err, "load product rates")
	})
	g.Go(func() (err error) {
		snap.Settings, snap.HasSettings, err = src.GetKPISettings(gctx)
		return eris.Wrap(err, "load kpi settings")
	})
	g.Go(func() (err error) {
		snap.AuditExceptions, err = src.ListAuditExceptions(gctx)
		return eris.Wrap(err, "load audit exceptions")
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.LoadedAt = time.Now()
	return snap, nil
}
