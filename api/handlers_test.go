/*
handlers_test.go - HTTP tests for the API handlers

Each test builds a router over an in-memory SQLite store seeded from a demo
scenario and drives it with httptest.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/scenarios"
	"github.com/astropanel/sales-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	router  *chi.Mux
	handler *Handler
	store   *sqlite.Store
}

func testOptions() engine.Options {
	return engine.Options{
		Month:              "2024-05",
		Clock:              func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		Location:           time.UTC,
		FallbackBaseSalary: generic.NewMoney(300),
	}
}

// setupTestServer seeds scenario (when not empty) and publishes a first state
// unless skipCompute is set.
func setupTestServer(t *testing.T, scenario string, skipCompute bool) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if scenario != "" {
		_, err := scenarios.Load(ctx, store, scenario)
		require.NoError(t, err)
	}

	rec := engine.NewRecomputer(store, testOptions, nil)
	if !skipCompute {
		_, err := rec.Trigger(ctx)
		require.NoError(t, err)
	}

	h := NewHandler(store, rec, zap.NewNop())
	return &testServer{router: NewRouter(h), handler: h, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

// =============================================================================
// HEALTH / STATE
// =============================================================================

func TestHealth(t *testing.T) {
	s := setupTestServer(t, "", true)

	rec := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotContains(t, body, "month", "nothing computed yet")
}

func TestViews_BeforeFirstCompute(t *testing.T) {
	s := setupTestServer(t, "spring-team", true)

	for _, path := range []string{"/api/payroll", "/api/attribution", "/api/anomalies", "/api/funnel"} {
		rec := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestGetPayroll_PublishedMonth(t *testing.T) {
	s := setupTestServer(t, "spring-team", false)

	rec := s.do(t, http.MethodGet, "/api/payroll", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[PayrollDTO](t, rec)
	assert.Equal(t, "2024-05", p.Month)
	assert.Len(t, p.Lines, 3, "consultants are not on payroll")
	assert.Len(t, p.Standings, 3)
	assert.True(t, p.Total.IsPositive())
}

func TestGetPayroll_OtherMonthComputedOnDemand(t *testing.T) {
	// GIVEN: state published for May
	s := setupTestServer(t, "spring-team", false)

	// WHEN: asking for April
	rec := s.do(t, http.MethodGet, "/api/payroll?month=2024-04", nil)

	// THEN: only kate's April purchase counts
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[PayrollDTO](t, rec)
	assert.Equal(t, "2024-04", p.Month)
	sales := 0
	for _, l := range p.Lines {
		sales += l.SalesCount
	}
	assert.Equal(t, 1, sales)
}

func TestGetPayroll_InvalidMonth(t *testing.T) {
	s := setupTestServer(t, "spring-team", false)

	rec := s.do(t, http.MethodGet, "/api/payroll?month=2024-13", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
}

func TestGetPayrollRange(t *testing.T) {
	s := setupTestServer(t, "spring-team", false)

	rec := s.do(t, http.MethodGet, "/api/payroll/range?from=2024-04&to=2024-05", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	ps := decode[[]PayrollDTO](t, rec)
	require.Len(t, ps, 2)
	assert.Equal(t, "2024-04", ps[0].Month)
	assert.Equal(t, "2024-05", ps[1].Month)
}

func TestGetPayrollRange_Invalid(t *testing.T) {
	s := setupTestServer(t, "spring-team", false)

	tests := []struct {
		name string
		path string
	}{
		{"inverted", "/api/payroll/range?from=2024-05&to=2024-04"},
		{"missing from", "/api/payroll/range?to=2024-04"},
		{"too long", "/api/payroll/range?from=2020-01&to=2024-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// =============================================================================
// ATTRIBUTION / FUNNEL / SCHEDULE
// =============================================================================

func TestGetAttribution(t *testing.T) {
	s := setupTestServer(t, "spring-team", false)

	rec := s.do(t, http.MethodGet, "/api/attribution", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[AttributionDTO](t, rec)
	assert.Equal(t, 13, a.Total)
	require.Len(t, a.BySource, 3)
	count := 0
	for _, s := range a.BySource {
		count += s.Count
	}
	assert.Equal(t, a.Total, count)
	assert.Len(t, a.Payments, 13)
}

func TestGetFunnel_GeoAndWindow(t *testing.T) {
	s := setupTestServer(t, "spring-team", false)

	rec := s.do(t, http.MethodGet, "/api/funnel?geo=PL&from=2024-05-01&to=2024-05-31", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	f := decode[FunnelDTO](t, rec)
	require.Len(t, f.Geos, 1)
	assert.Equal(t, "PL", f.Geos[0].Geo)
	// ivan and piotr are first-time buyers; piotr's calendar is his second.
	assert.Equal(t, [4]int{2, 1, 0, 0}, f.Geos[0].Counts)
	assert.InDelta(t, 50.0, f.Geos[0].Conversions[0], 0.0001)
}

func TestGetFunnel_InvalidWindow(t *testing.T) {
	s := setupTestServer(t, "spring-team", false)

	rec := s.do(t, http.MethodGet, "/api/funnel?from=2024-05-31&to=2024-05-01", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetScheduleAudit(t *testing.T) {
	s := setupTestServer(t, "spring-team", false)

	rec := s.do(t, http.MethodGet, "/api/schedule/audit", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	r := decode[ScheduleReportDTO](t, rec)
	require.Len(t, r.Conflicts, 1)
	assert.Equal(t, "2024-05-03", r.Conflicts[0].Date)
	assert.Equal(t, "KZ", r.Conflicts[0].Geo)
	assert.Equal(t, []string{"anna", "dina"}, r.Conflicts[0].Managers)
}

// =============================================================================
// AUDIT EXCEPTIONS
// =============================================================================

func TestAuditExceptions_Lifecycle(t *testing.T) {
	// GIVEN: the audit scenario with its 450 EUR payment flagged
	s := setupTestServer(t, "audit-showcase", false)
	before := decode[AnomalyReportDTO](t, s.do(t, http.MethodGet, "/api/anomalies", nil))
	assert.Contains(t, before.FlaggedIDs, "au-03")

	// WHEN: suppressing it
	rec := s.do(t, http.MethodPost, "/api/audit-exceptions", CreateAuditExceptionRequest{
		PaymentID: "au-03", Reason: "verified wire transfer", CreatedBy: "ops",
	})

	// THEN: it is created and the anomaly view no longer shows it
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[AuditExceptionDTO](t, rec)
	assert.NotEmpty(t, created.ID)

	after := decode[AnomalyReportDTO](t, s.do(t, http.MethodGet, "/api/anomalies", nil))
	assert.NotContains(t, after.FlaggedIDs, "au-03")
	assert.Equal(t, 1, after.Suppressed)

	list := decode[[]AuditExceptionDTO](t, s.do(t, http.MethodGet, "/api/audit-exceptions", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "au-03", list[0].PaymentID)

	// Removing it brings the flag back.
	rec = s.do(t, http.MethodDelete, "/api/audit-exceptions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	restored := decode[AnomalyReportDTO](t, s.do(t, http.MethodGet, "/api/anomalies", nil))
	assert.Contains(t, restored.FlaggedIDs, "au-03")
}

func TestCreateAuditException_Errors(t *testing.T) {
	s := setupTestServer(t, "audit-showcase", false)
	require.Equal(t, http.StatusCreated,
		s.do(t, http.MethodPost, "/api/audit-exceptions", CreateAuditExceptionRequest{PaymentID: "au-01"}).Code)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"duplicate", CreateAuditExceptionRequest{PaymentID: "au-01"}, http.StatusConflict},
		{"unknown payment", CreateAuditExceptionRequest{PaymentID: "nope"}, http.StatusNotFound},
		{"missing payment id", CreateAuditExceptionRequest{Reason: "x"}, http.StatusBadRequest},
		{"blank payment id", CreateAuditExceptionRequest{PaymentID: "   "}, http.StatusBadRequest},
		{"reason too long", CreateAuditExceptionRequest{PaymentID: "au-03", Reason: strings.Repeat("x", 501)}, http.StatusBadRequest},
		{"not json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/audit-exceptions", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestDeleteAuditException_NotFound(t *testing.T) {
	s := setupTestServer(t, "audit-showcase", false)

	rec := s.do(t, http.MethodDelete, "/api/audit-exceptions/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// RECOMPUTE / SCENARIOS
// =============================================================================

func TestRecompute_PublishesFirstState(t *testing.T) {
	s := setupTestServer(t, "spring-team", true)

	rec := s.do(t, http.MethodPost, "/api/recompute", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RecomputeResponse](t, rec)
	assert.Equal(t, "2024-05", resp.Month)
	assert.Equal(t, 13, resp.Payments)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/payroll", nil).Code)
}

func TestScenarios_ListAndLoad(t *testing.T) {
	// GIVEN: an empty store
	s := setupTestServer(t, "", false)

	list := decode[[]scenarios.Info](t, s.do(t, http.MethodGet, "/api/scenarios", nil))
	require.Len(t, list, 2)

	// WHEN: loading the spring team
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "spring-team"})

	// THEN: the published state reflects it immediately
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[AttributionDTO](t, s.do(t, http.MethodGet, "/api/attribution", nil))
	assert.Equal(t, 13, a.Total)

	current := decode[scenarios.Info](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "spring-team", current.ID)
}

func TestScenarios_LoadUnknown(t *testing.T) {
	s := setupTestServer(t, "", false)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenarios_LoadRequiresID(t *testing.T) {
	s := setupTestServer(t, "", false)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(generic.ErrDuplicateException))
	assert.Equal(t, http.StatusNotFound, statusFor(generic.ErrExceptionNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(&generic.MonthKeyError{Input: "x"}))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(generic.ErrNotComputed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
