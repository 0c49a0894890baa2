package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/astropanel/sales-engine/factory"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

func observedFactory() (*factory.SettingsFactory, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return factory.NewSettingsFactory(zap.New(core)), logs
}

func TestParseSettings_FullDocument(t *testing.T) {
	f, logs := observedFactory()

	raw := `{
		"base_salary": 300,
		"daily_tiers": [{"min": 3, "max": 4, "reward": 5}, {"min": 5, "max": 99, "reward": "10.50"}],
		"monthly_tiers": "[{\"min\": 60, \"max\": 79, \"reward\": 50}]"
	}`
	s := f.ParseSettings(raw, generic.NewMoneyFromInt(250))

	assert.True(t, s.BaseSalary.Equal(generic.NewMoneyFromInt(300)))
	require.Len(t, s.DailyTiers, 2)
	assert.Equal(t, 5, s.DailyTiers[1].Min)
	assert.True(t, s.DailyTiers[1].Reward.Equal(generic.MustParseDecimal("10.5")))
	require.Len(t, s.MonthlyTiers, 1, "double-encoded list is accepted")
	assert.Equal(t, 0, logs.Len())
}

func TestParseSettings_MalformedTiersRecoverToEmpty(t *testing.T) {
	// GIVEN: a document whose daily tier list is broken JSON
	f, logs := observedFactory()
	raw := `{"base_salary": 300, "daily_tiers": "[{\"min\": 3,", "monthly_tiers": [{"min": 1, "max": 5, "reward": 20}]}`

	// WHEN: parsing
	s := f.ParseSettings(raw, generic.NewMoneyFromInt(250))

	// THEN: daily tiers are empty, monthly tiers survive, a warning is logged
	assert.Empty(t, s.DailyTiers)
	assert.Len(t, s.MonthlyTiers, 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "daily", logs.All()[0].ContextMap()["list"])
}

func TestParseSettings_MalformedDocumentUsesFallback(t *testing.T) {
	f, logs := observedFactory()

	s := f.ParseSettings(`{not json`, generic.NewMoneyFromInt(250))

	assert.True(t, s.BaseSalary.Equal(generic.NewMoneyFromInt(250)))
	assert.Empty(t, s.DailyTiers)
	assert.Empty(t, s.MonthlyTiers)
	assert.Equal(t, 1, logs.Len())
}

func TestParseSettings_EmptyUsesFallback(t *testing.T) {
	f, logs := observedFactory()
	s := f.ParseSettings("", generic.NewMoneyFromInt(250))
	assert.True(t, s.BaseSalary.Equal(generic.NewMoneyFromInt(250)))
	assert.Equal(t, 0, logs.Len())
}

func TestDecodeTiers_Strict(t *testing.T) {
	_, err := factory.DecodeTiers(`[{"min": "x"}]`)
	assert.Error(t, err)

	tiers, err := factory.DecodeTiers("null")
	assert.NoError(t, err)
	assert.Empty(t, tiers)
}

func TestEncodeSettings_RoundTripsThroughParse(t *testing.T) {
	in := sales.KPISettings{
		BaseSalary:   generic.NewMoneyFromInt(320),
		DailyTiers:   []sales.TierRule{{Min: 2, Max: 3, Reward: generic.NewMoneyFromInt(4)}},
		MonthlyTiers: []sales.TierRule{{Min: 40, Max: 59, Reward: generic.NewMoneyFromInt(25)}},
	}

	f, _ := observedFactory()
	out := f.ParseSettings(factory.EncodeSettings(in), generic.NewMoneyFromInt(0))

	assert.True(t, out.BaseSalary.Equal(in.BaseSalary))
	require.Len(t, out.DailyTiers, 1)
	assert.True(t, out.DailyTiers[0].Reward.Equal(in.DailyTiers[0].Reward))
	require.Len(t, out.MonthlyTiers, 1)
	assert.Equal(t, 40, out.MonthlyTiers[0].Min)
}
