package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
	"github.com/astropanel/sales-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func boolPtr(b bool) *bool { return &b }

func dataset() sales.Dataset {
	return sales.Dataset{
		Payments: []sales.Payment{
			{ID: "p2", ClientHandle: "@kate", TransactionDate: time.Date(2024, 5, 3, 9, 30, 0, 0, time.UTC), Amount: generic.MustParseDecimal("49.99"), ProductName: "Start", ManagerID: "anna", Country: "UA"},
			{ID: "p1", TransactionDate: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), Amount: generic.NewMoney(20), ProductName: "Start"},
		},
		Leads: []sales.Lead{
			{ChatHandle: "kate", IsComment: boolPtr(true)},
			{ChatHandle: "bob"},
		},
		Managers: []sales.Manager{{ID: "anna", Name: "Anna", Role: sales.RoleSeniorSales, PrimaryGeo: "UA"}},
		Schedules: []sales.ScheduleEntry{
			{ManagerID: "anna", Date: generic.NewTimePoint(2024, time.May, 2), GeoCodes: "UA,KZ"},
			{ManagerID: "anna", Date: generic.NewTimePoint(2024, time.June, 1), GeoCodes: "UA"},
		},
		RateOverrides: []sales.RateOverride{
			{ManagerID: "anna", Scope: sales.DefaultScope, BaseRate: generic.NewMoney(400), Bonus: generic.NewMoney(10), Penalty: generic.NewMoney(0)},
			{ManagerID: "anna", Scope: sales.DefaultScope, BaseRate: generic.NewMoney(420), Bonus: generic.NewMoney(0), Penalty: generic.NewMoney(0)},
		},
		ProductRates: []sales.ProductRate{
			{Pattern: "start", RewardPerSale: generic.NewMoney(2)},
			{Pattern: "calendar", RewardPerSale: generic.NewMoney(1)},
		},
		Settings: &sales.KPISettings{
			BaseSalary: generic.NewMoney(300),
			DailyTiers: []sales.TierRule{{Min: 3, Max: 4, Reward: generic.NewMoney(5)}},
		},
	}
}

func TestImportAndRead(t *testing.T) {
	// GIVEN: a freshly imported dataset
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Import(ctx, dataset()))

	// WHEN / THEN: every collection reads back in its canonical shape
	payments, err := s.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, generic.PaymentID("p1"), payments[0].ID, "ordered by date")
	assert.Empty(t, payments[0].ClientHandle)
	assert.Empty(t, payments[0].ManagerID)
	assert.True(t, payments[1].Amount.Equal(generic.MustParseDecimal("49.99")))
	assert.True(t, payments[1].TransactionDate.Equal(time.Date(2024, 5, 3, 9, 30, 0, 0, time.UTC)))

	leads, err := s.ListLeads(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	require.NotNil(t, leads[0].IsComment)
	assert.True(t, *leads[0].IsComment)
	assert.Nil(t, leads[1].IsComment, "NULL stays unknown")

	managers, err := s.ListManagers(ctx)
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, sales.RoleSeniorSales, managers[0].Role)

	overrides, err := s.ListRateOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, overrides, 1, "one override per (manager, scope)")
	assert.True(t, overrides[0].BaseRate.Equal(generic.NewMoney(420)))

	rates, err := s.ListProductRates(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "start", rates[0].Pattern)

	settings, found, err := s.GetKPISettings(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, settings.BaseSalary.Equal(generic.NewMoney(300)))
	assert.Len(t, settings.DailyTiers, 1)
}

func TestListSchedules_FiltersByPeriod(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Import(ctx, dataset()))

	got, err := s.ListSchedules(ctx, generic.MonthKey("2024-05").Period())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsMultiGeo())
	assert.Equal(t, "2024-05-02", got[0].Date.String())
}

func TestGetKPISettings_MissingRow(t *testing.T) {
	s := newStore(t)

	_, found, err := s.GetKPISettings(context.Background())

	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetKPISettings_MalformedTiersLoggedNotReturned(t *testing.T) {
	// GIVEN: a dashboard-written document whose daily list is truncated
	core, logs := observer.New(zap.WarnLevel)
	s, err := sqlite.New(":memory:", zap.New(core))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.SaveRawSettings(ctx, `{"base_salary": 310, "daily_tiers": "[{\"min\":"}`))

	// WHEN
	settings, found, err := s.GetKPISettings(ctx)

	// THEN
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, settings.BaseSalary.Equal(generic.NewMoney(310)))
	assert.Empty(t, settings.DailyTiers)
	assert.Equal(t, 1, logs.Len())
}

func TestAuditExceptions_Lifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Import(ctx, dataset()))

	e, err := s.AddAuditException(ctx, "p1", "verified refund", "ops")
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)

	_, err = s.AddAuditException(ctx, "p1", "again", "ops")
	assert.ErrorIs(t, err, generic.ErrDuplicateException)

	_, err = s.AddAuditException(ctx, "nope", "", "ops")
	assert.ErrorIs(t, err, generic.ErrPaymentNotFound)

	list, err := s.ListAuditExceptions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "verified refund", list[0].Reason)

	require.NoError(t, s.RemoveAuditException(ctx, e.ID))
	assert.ErrorIs(t, s.RemoveAuditException(ctx, e.ID), generic.ErrExceptionNotFound)
}

func TestReset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Import(ctx, dataset()))

	require.NoError(t, s.Reset(ctx))

	payments, err := s.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)
	_, found, err := s.GetKPISettings(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListPayments_SkipsRowsWithBadDate(t *testing.T) {
	// GIVEN: a store file with one good payment and one written by hand with
	// an unparseable date
	core, logs := observer.New(zap.WarnLevel)
	path := filepath.Join(t.TempDir(), "sales.db")
	s, err := sqlite.New(path, zap.New(core))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Import(ctx, dataset()))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.ExecContext(ctx, `
		INSERT INTO payments (id, client_handle, transaction_date, amount)
		VALUES ('bad', 'kate', '03.05.2024', '20')`)
	require.NoError(t, err)

	// WHEN
	payments, err := s.ListPayments(ctx)

	// THEN: the bad row is dropped and logged, the rest are intact
	require.NoError(t, err)
	require.Len(t, payments, 2)
	for _, p := range payments {
		assert.NotEqual(t, generic.PaymentID("bad"), p.ID)
		assert.False(t, p.TransactionDate.IsZero())
	}
	assert.Equal(t, 1, logs.FilterMessage("sqlite: skipping payment row with bad date").Len())
}
