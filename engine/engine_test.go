package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
	"github.com/astropanel/sales-engine/sales/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func clockAt(y int, m time.Month, d int) generic.Clock {
	return func() time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }
}

func seededStore() *store.Memory {
	m := store.NewMemory()
	m.AddManagers(
		sales.Manager{ID: "anna", Name: "Anna", Role: sales.RoleSales, PrimaryGeo: "UA"},
		sales.Manager{ID: "cora", Name: "Cora", Role: sales.RoleConsultant, PrimaryGeo: "UA"},
	)
	m.AddPayments(
		sales.Payment{ID: "p1", ClientHandle: "@kate", TransactionDate: time.Date(2024, time.April, 28, 10, 0, 0, 0, time.UTC), Amount: generic.NewMoney(50), ProductName: "Start", ManagerID: "anna", Country: "UA"},
		sales.Payment{ID: "p2", ClientHandle: "kate", TransactionDate: time.Date(2024, time.May, 3, 10, 0, 0, 0, time.UTC), Amount: generic.NewMoney(15), ProductName: "Календарь", ManagerID: "anna", Country: "UA"},
		sales.Payment{ID: "p3", ClientHandle: "+380 67 000", TransactionDate: time.Date(2024, time.May, 4, 10, 0, 0, 0, time.UTC), Amount: generic.NewMoney(300), ProductName: "VIP", ManagerID: "anna", Country: "UA"},
	)
	m.AddLeads(sales.Lead{ChatHandle: "kate", IsComment: func() *bool { b := true; return &b }()})
	m.AddSchedules(
		sales.ScheduleEntry{ManagerID: "anna", Date: generic.NewTimePoint(2024, time.May, 1), GeoCodes: "UA"},
		sales.ScheduleEntry{ManagerID: "anna", Date: generic.NewTimePoint(2024, time.May, 2), GeoCodes: "UA,KZ"},
		sales.ScheduleEntry{ManagerID: "anna", Date: generic.NewTimePoint(2024, time.April, 2), GeoCodes: "UA"},
	)
	m.SetKPISettings(sales.KPISettings{BaseSalary: generic.NewMoney(300)})
	return m
}

func mayOptions() engine.Options {
	return engine.Options{
		Month:              "2024-05",
		Clock:              clockAt(2024, time.May, 20),
		Location:           time.UTC,
		FallbackBaseSalary: generic.NewMoney(250),
	}
}

func loadAll(t *testing.T, src sales.Source, from, to generic.MonthKey) *engine.Snapshot {
	t.Helper()
	period := generic.Period{Start: from.Period().Start, End: to.Period().End}
	snap, err := engine.Load(context.Background(), src, period)
	require.NoError(t, err)
	return snap
}

// =============================================================================
// COMPUTE ALL
// =============================================================================

func TestComputeAll_ThreadsGlobalRanksIntoEveryView(t *testing.T) {
	// GIVEN: kate's April purchase and her discounted May calendar
	snap := loadAll(t, seededStore(), "2024-05", "2024-05")

	// WHEN: computing May
	state := engine.ComputeAll(snap, mayOptions())

	// THEN: the calendar is rank 2 even though April is outside the payroll month
	rank, ok := state.Ranks.Of("p2")
	require.True(t, ok)
	assert.Equal(t, 2, rank)
	assert.Equal(t, []generic.PaymentID{"p3"}, state.Anomalies.FlaggedIDs())

	// AND: attribution covers every payment
	assert.Equal(t, 3, state.Attribution.Total)
	assert.Equal(t, sales.ChannelComments, state.Attributed[1].Source)
	assert.Equal(t, sales.ChannelWhatsApp, state.Attributed[2].Source)

	// AND: payroll counts May only
	require.Len(t, state.Payroll.Lines, 1)
	line := state.Payroll.Lines[0]
	assert.Equal(t, 2, line.SalesCount)
	assert.Equal(t, 1, line.RegularShifts)
	assert.Equal(t, 1, line.MultiGeoShifts)
}

func TestComputeAll_MissingSettingsUsesFallback(t *testing.T) {
	snap := loadAll(t, seededStore(), "2024-05", "2024-05")
	snap.HasSettings = false

	state := engine.ComputeAll(snap, mayOptions())

	assert.True(t, state.Settings.BaseSalary.Equal(generic.NewMoney(250)))
}

func TestComputeAll_DefaultsMonthFromClock(t *testing.T) {
	snap := loadAll(t, seededStore(), "2024-05", "2024-05")
	opts := mayOptions()
	opts.Month = ""

	state := engine.ComputeAll(snap, opts)

	assert.Equal(t, generic.MonthKey("2024-05"), state.Month)
}

func TestComputeAll_DoesNotMutateSnapshot(t *testing.T) {
	snap := loadAll(t, seededStore(), "2024-05", "2024-05")
	before := append([]sales.Payment(nil), snap.Payments...)

	_ = engine.ComputeAll(snap, mayOptions())

	assert.Equal(t, before, snap.Payments)
}

// =============================================================================
// MULTI-MONTH PAYROLL
// =============================================================================

func TestComputePayrollMonths_KeepsOrder(t *testing.T) {
	snap := loadAll(t, seededStore(), "2024-04", "2024-05")

	out, err := engine.ComputePayrollMonths(context.Background(), snap, []generic.MonthKey{"2024-04", "2024-05"}, mayOptions())

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, generic.MonthKey("2024-04"), out[0].Month)
	assert.Equal(t, 1, out[0].Lines[0].SalesCount)
	assert.Equal(t, 1, out[0].Lines[0].RegularShifts)
	assert.Equal(t, 2, out[1].Lines[0].SalesCount)
}

func TestComputePayrollMonths_CancelledContext(t *testing.T) {
	snap := loadAll(t, seededStore(), "2024-05", "2024-05")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.ComputePayrollMonths(ctx, snap, []generic.MonthKey{"2024-05"}, mayOptions())

	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// RECOMPUTER
// =============================================================================

// blockingSource blocks its first ListPayments call until the context ends.
type blockingSource struct {
	*store.Memory
	calls   atomic.Int32
	entered chan struct{}
}

func (b *blockingSource) ListPayments(ctx context.Context) ([]sales.Payment, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return b.Memory.ListPayments(ctx)
}

func TestRecomputer_StateBeforeFirstTrigger(t *testing.T) {
	r := engine.NewRecomputer(seededStore(), mayOptions, nil)

	_, err := r.State()

	assert.ErrorIs(t, err, generic.ErrNotComputed)
}

func TestRecomputer_PublishesState(t *testing.T) {
	r := engine.NewRecomputer(seededStore(), mayOptions, nil)

	state, err := r.Trigger(context.Background())
	require.NoError(t, err)

	published, err := r.State()
	require.NoError(t, err)
	assert.Same(t, state, published)
}

func TestRecomputer_NewTriggerSupersedesInFlight(t *testing.T) {
	// GIVEN: a first recompute stuck loading payments
	src := &blockingSource{Memory: seededStore(), entered: make(chan struct{})}
	r := engine.NewRecomputer(src, mayOptions, nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Trigger(context.Background())
		firstErr <- err
	}()
	<-src.entered

	// WHEN: a second trigger arrives
	state, err := r.Trigger(context.Background())

	// THEN: the second publishes and the first reports it was superseded
	require.NoError(t, err)
	assert.NotNil(t, state)
	select {
	case err := <-firstErr:
		assert.True(t, errors.Is(err, generic.ErrSuperseded), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("first recompute never returned")
	}
	published, err := r.State()
	require.NoError(t, err)
	assert.Same(t, state, published)
}
