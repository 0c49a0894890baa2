package main

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astropanel/sales-engine/api"
	"github.com/astropanel/sales-engine/config"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/payroll"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "payroll", "audit", "seed"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "sales-engine", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, serveCmd.Flags().Lookup("scenario"))
}

func TestPayrollCommand_Flags(t *testing.T) {
	for _, name := range []string{"month", "to", "format"} {
		assert.NotNil(t, payrollCmd.Flags().Lookup(name), "payroll should have --%s flag", name)
	}
	assert.Equal(t, "table", payrollCmd.Flags().Lookup("format").DefValue)
}

func TestSeedCommand_Flags(t *testing.T) {
	flag := seedCmd.Flags().Lookup("scenario")
	require.NotNil(t, flag)
	assert.Equal(t, "spring-team", flag.DefValue)
	assert.NotNil(t, seedCmd.Flags().Lookup("list"))
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "oracle"}}
	t.Cleanup(func() { cfg = nil })

	_, err := initStore(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver: oracle")
}

func TestInitStore_PostgresNeedsURL(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "postgres"}}
	t.Cleanup(func() { cfg = nil })

	_, err := initStore(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL")
}

func TestInitStore_Memory(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "memory"}}
	t.Cleanup(func() { cfg = nil })

	st, err := initStore(t.Context())
	require.NoError(t, err)
	assert.NoError(t, st.Close())
}

func TestEngineOptions_FromConfig(t *testing.T) {
	cfg = &config.Config{Payroll: config.PayrollConfig{
		BaseSalary: 300,
		Timezone:   "Europe/Berlin",
		TeamAward:  30,
		TeamGroups: payroll.DefaultTeamGroups(),
	}}
	t.Cleanup(func() { cfg = nil })

	options, err := engineOptions("2024-05")
	require.NoError(t, err)
	opts := options()

	assert.Equal(t, generic.MonthKey("2024-05"), opts.Month)
	assert.Equal(t, "Europe/Berlin", opts.Location.String())
	assert.True(t, decimal.NewFromInt(300).Equal(opts.FallbackBaseSalary))
	assert.Len(t, opts.TeamGroups, len(payroll.DefaultTeamGroups()))
}

func TestEngineOptions_BadTimezone(t *testing.T) {
	cfg = &config.Config{Payroll: config.PayrollConfig{Timezone: "Mars/Olympus"}}
	t.Cleanup(func() { cfg = nil })

	_, err := engineOptions("")
	assert.Error(t, err)
}

func TestParseMonthFlag(t *testing.T) {
	m, err := parseMonthFlag("month", "")
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = parseMonthFlag("month", "2024-05")
	require.NoError(t, err)
	assert.Equal(t, generic.MonthKey("2024-05"), m)

	_, err = parseMonthFlag("month", "May 2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--month")
}

func TestFormatAudit_NoScheduleProblems(t *testing.T) {
	var buf bytes.Buffer
	formatAudit(&buf, api.AnomalyReportDTO{FlaggedIDs: []string{"p1"}}, api.ScheduleReportDTO{Month: "2024-05"})

	out := buf.String()
	assert.Contains(t, out, "Flagged payments: 1")
	assert.Contains(t, out, "No schedule problems.")
}

func TestFormatAudit_ListsConflicts(t *testing.T) {
	var buf bytes.Buffer
	formatAudit(&buf, api.AnomalyReportDTO{}, api.ScheduleReportDTO{
		Month:     "2024-05",
		Conflicts: []api.AssignmentConflictDTO{{Date: "2024-05-03", Geo: "KZ", Managers: []string{"anna", "dina"}}},
	})

	assert.Contains(t, buf.String(), "multiple sales managers: anna, dina")
}
