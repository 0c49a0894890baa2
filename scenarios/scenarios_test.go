package scenarios_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
	"github.com/astropanel/sales-engine/sales/store"
	"github.com/astropanel/sales-engine/scenarios"
)

func TestList(t *testing.T) {
	infos, err := scenarios.List()
	require.NoError(t, err)

	ids := make([]string, 0, len(infos))
	for _, i := range infos {
		ids = append(ids, i.ID)
		assert.NotEmpty(t, i.Name)
	}
	assert.Equal(t, []string{"audit-showcase", "spring-team"}, ids)
}

func TestGet_SpringTeam(t *testing.T) {
	info, ds, err := scenarios.Get("spring-team")
	require.NoError(t, err)

	assert.Equal(t, "payroll", info.Category)
	assert.Len(t, ds.Managers, 4)
	assert.Len(t, ds.Payments, 13)
	require.NotNil(t, ds.Settings)
	assert.True(t, ds.Settings.BaseSalary.Equal(generic.NewMoney(300)))
	assert.Len(t, ds.Settings.DailyTiers, 2)
	assert.Len(t, ds.Settings.MonthlyTiers, 2)
	assert.True(t, ds.Payments[0].Amount.Equal(generic.MustParseDecimal("45")))
	assert.Equal(t, "2024-05-03", ds.Schedules[1].Date.String())
	assert.Nil(t, ds.Leads[2].IsComment, "missing flag stays unknown")
}

func TestGet_UnknownScenario(t *testing.T) {
	for _, id := range []string{"nope", "", "../go"} {
		_, _, err := scenarios.Get(id)
		assert.ErrorIs(t, err, generic.ErrScenarioNotFound, id)
		assert.True(t, generic.IsNotFound(err))
	}
}

func TestLoad_ResetsBeforeImport(t *testing.T) {
	// GIVEN: a store holding a leftover payment
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddPayments(sales.Payment{ID: "stale", Amount: generic.NewMoney(20)})

	// WHEN
	info, err := scenarios.Load(ctx, mem, "audit-showcase")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "audit-showcase", info.ID)
	payments, err := mem.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 9)
	for _, p := range payments {
		assert.NotEqual(t, generic.PaymentID("stale"), p.ID)
	}
}

func TestAuditShowcase_TripsEveryDetector(t *testing.T) {
	// GIVEN: the audit scenario in a memory store
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := scenarios.Load(ctx, mem, "audit-showcase")
	require.NoError(t, err)

	month := generic.MonthKey("2024-06")
	snap, err := engine.Load(ctx, mem, month.Period())
	require.NoError(t, err)

	// WHEN
	state := engine.ComputeAll(snap, engine.Options{
		Month:        month,
		Clock:        func() time.Time { return time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC) },
		Location:     time.UTC,
		RequiredGeos: []string{"UA", "PL"},
	})

	// THEN: only the repeat calendar discount is left unflagged
	assert.Equal(t, []generic.PaymentID{"au-01", "au-02", "au-03", "au-04", "au-05", "au-07", "au-08", "au-09"},
		state.Anomalies.FlaggedIDs())
	require.Len(t, state.Anomalies.Duplicates, 1)
	assert.Len(t, state.Anomalies.FutureDated, 1)
	assert.Len(t, state.Anomalies.LinkNicknames, 2)

	require.Len(t, state.Schedule.Conflicts, 1)
	assert.Equal(t, "UA", state.Schedule.Conflicts[0].Geo)
	assert.Equal(t, []generic.ManagerID{"anna", "boris"}, state.Schedule.Conflicts[0].Managers)
}

func TestSpringTeam_ComputesPayroll(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := scenarios.Load(ctx, mem, "spring-team")
	require.NoError(t, err)

	month := generic.MonthKey("2024-05")
	snap, err := engine.Load(ctx, mem, month.Period())
	require.NoError(t, err)

	state := engine.ComputeAll(snap, engine.Options{
		Month:    month,
		Clock:    func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	})

	// Consultants are not on payroll.
	assert.Len(t, state.Payroll.Lines, 3)
	assert.True(t, state.Payroll.Total.IsPositive())
	assert.Equal(t, 13, state.Attribution.Total)
}
