/*
handlers.go - HTTP API handlers for the sales dashboard

PURPOSE:
  Exposes the derived state (payroll, attribution, audits, funnel) and the
  audit-exception write path via REST API. Handlers read the recomputer's
  latest published state; only requests for a different month load a fresh
  snapshot.

ENDPOINTS:
  Views:
    GET    /api/payroll?month=YYYY-MM           Payroll for one month
    GET    /api/payroll/range?from=&to=         Payroll for a month range
    GET    /api/attribution                     Channel totals and payments
    GET    /api/anomalies                       Anomaly report
    GET    /api/schedule/audit?month=YYYY-MM    Schedule conflicts and gaps
    GET    /api/funnel?from=&to=&geo=&department=

  Audit exceptions:
    GET    /api/audit-exceptions                List suppressions
    POST   /api/audit-exceptions                Suppress a payment
    DELETE /api/audit-exceptions/{id}           Remove a suppression

  Admin:
    POST   /api/recompute                       Reload and recompute now

  Scenarios (scenarios.go):
    GET    /api/scenarios
    POST   /api/scenarios/load

ARCHITECTURE:
  Handler holds:
  - Store: the backend, for audit-exception writes and scenario loading
  - Recomputer: the published DerivedState and its options

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid month, period or request body
  - 404: Unknown payment, exception or scenario
  - 409: Payment already suppressed
  - 503: No state computed yet
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The API is meant to sit behind the dashboard's gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/recomputer.go: Published state
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/audit"
	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/funnel"
	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/payroll"
	"github.com/astropanel/sales-engine/sales"
)

// MaxRangeMonths bounds /api/payroll/range.
const MaxRangeMonths = 24

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      sales.Store
	Recomputer *engine.Recomputer
	Logger     *zap.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. A nil logger uses the global one.
func NewHandler(store sales.Store, rec *engine.Recomputer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.L()
	}
	return &Handler{Store: store, Recomputer: rec, Logger: logger, validate: validator.New()}
}

// recompute refreshes the published state after a write. A superseded run is
// fine: the newer one publishes.
func (h *Handler) recompute(ctx context.Context) error {
	_, err := h.Recomputer.Trigger(ctx)
	if errors.Is(err, generic.ErrSuperseded) {
		return nil
	}
	return err
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and the age of the published state.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if state, err := h.Recomputer.State(); err == nil {
		resp["month"] = state.Month.String()
		resp["computed_at"] = state.ComputedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PAYROLL
// =============================================================================

// GetPayroll returns payroll for ?month (default: the published month).
// GET /api/payroll
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	state, err := h.Recomputer.State()
	if err != nil {
		writeDomainError(w, "Payroll not available", err)
		return
	}

	month, err := monthParam(r, "month", state.Month)
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}
	if month == state.Month {
		writeJSON(w, http.StatusOK, ToPayrollDTO(state.Payroll))
		return
	}

	payrolls, err := h.payrollFor(r.Context(), []generic.MonthKey{month})
	if err != nil {
		writeDomainError(w, "Failed to compute payroll", err)
		return
	}
	writeJSON(w, http.StatusOK, ToPayrollDTO(payrolls[0]))
}

// GetPayrollRange returns payroll for every month in [from, to].
// GET /api/payroll/range
func (h *Handler) GetPayrollRange(w http.ResponseWriter, r *http.Request) {
	from, err := generic.ParseMonthKey(r.URL.Query().Get("from"))
	if err != nil {
		writeDomainError(w, "Invalid from month", err)
		return
	}
	to, err := generic.ParseMonthKey(r.URL.Query().Get("to"))
	if err != nil {
		writeDomainError(w, "Invalid to month", err)
		return
	}
	if to < from {
		writeDomainError(w, "Invalid range", generic.ErrInvalidPeriod)
		return
	}
	months := generic.MonthsBetween(from, to)
	if len(months) > MaxRangeMonths {
		writeError(w, http.StatusBadRequest, "Range too long", eris.Errorf("at most %d months", MaxRangeMonths))
		return
	}

	payrolls, err := h.payrollFor(r.Context(), months)
	if err != nil {
		writeDomainError(w, "Failed to compute payroll", err)
		return
	}
	dtos := make([]PayrollDTO, 0, len(payrolls))
	for _, p := range payrolls {
		dtos = append(dtos, ToPayrollDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// payrollFor loads one snapshot covering every month and computes them in
// parallel.
func (h *Handler) payrollFor(ctx context.Context, months []generic.MonthKey) ([]payroll.Payroll, error) {
	period := generic.Period{Start: months[0].Period().Start, End: months[len(months)-1].Period().End}
	snap, err := engine.Load(ctx, h.Recomputer.Source(), period)
	if err != nil {
		return nil, err
	}
	return engine.ComputePayrollMonths(ctx, snap, months, h.Recomputer.Options())
}

// =============================================================================
// ATTRIBUTION / ANOMALIES
// =============================================================================

// GetAttribution returns per-channel totals and every attributed payment.
// GET /api/attribution
func (h *Handler) GetAttribution(w http.ResponseWriter, r *http.Request) {
	state, err := h.Recomputer.State()
	if err != nil {
		writeDomainError(w, "Attribution not available", err)
		return
	}
	writeJSON(w, http.StatusOK, toAttributionDTO(state))
}

// GetAnomalies returns the anomaly report, suppressed payments excluded.
// GET /api/anomalies
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	state, err := h.Recomputer.State()
	if err != nil {
		writeDomainError(w, "Anomalies not available", err)
		return
	}
	writeJSON(w, http.StatusOK, ToAnomalyReportDTO(state.Anomalies, state.Ranks))
}

// =============================================================================
// SCHEDULE AUDIT
// =============================================================================

// GetScheduleAudit returns the schedule report for ?month.
// GET /api/schedule/audit
func (h *Handler) GetScheduleAudit(w http.ResponseWriter, r *http.Request) {
	state, err := h.Recomputer.State()
	if err != nil {
		writeDomainError(w, "Schedule audit not available", err)
		return
	}
	month, err := monthParam(r, "month", state.Month)
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}
	if month == state.Month {
		writeJSON(w, http.StatusOK, ToScheduleReportDTO(state.Schedule))
		return
	}

	ctx := r.Context()
	source := h.Recomputer.Source()
	managers, err := source.ListManagers(ctx)
	if err != nil {
		writeDomainError(w, "Failed to load managers", err)
		return
	}
	schedules, err := source.ListSchedules(ctx, month.Period())
	if err != nil {
		writeDomainError(w, "Failed to load schedules", err)
		return
	}
	opts := h.Recomputer.Options()
	report := audit.NewScheduleAuditor(managers, opts.RequiredGeos, opts.ExcludedTargets).Audit(month, schedules)
	writeJSON(w, http.StatusOK, ToScheduleReportDTO(report))
}

// =============================================================================
// FUNNEL
// =============================================================================

// GetFunnel aggregates the purchase funnel over the published snapshot.
// Ranks stay global: the window only selects which payments are counted.
// GET /api/funnel
func (h *Handler) GetFunnel(w http.ResponseWriter, r *http.Request) {
	state, err := h.Recomputer.State()
	if err != nil {
		writeDomainError(w, "Funnel not available", err)
		return
	}

	q := r.URL.Query()
	filter := funnel.Filter{
		Geo:        strings.TrimSpace(q.Get("geo")),
		Department: funnel.ParseDepartment(q.Get("department")),
		Location:   h.Recomputer.Options().Location,
	}
	if q.Get("from") != "" || q.Get("to") != "" {
		window, err := windowParam(q.Get("from"), q.Get("to"))
		if err != nil {
			writeDomainError(w, "Invalid window", err)
			return
		}
		filter.Window = &window
	}

	snap := state.Snapshot
	f := funnel.Aggregate(snap.Payments, state.Ranks, sales.NewManagerDirectory(snap.Managers), filter)
	writeJSON(w, http.StatusOK, toFunnelDTO(f))
}

// =============================================================================
// AUDIT EXCEPTIONS
// =============================================================================

// ListAuditExceptions returns every suppression.
// GET /api/audit-exceptions
func (h *Handler) ListAuditExceptions(w http.ResponseWriter, r *http.Request) {
	exceptions, err := h.Store.ListAuditExceptions(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list audit exceptions", err)
		return
	}
	dtos := make([]AuditExceptionDTO, 0, len(exceptions))
	for _, e := range exceptions {
		dtos = append(dtos, toAuditExceptionDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAuditException suppresses a payment and recomputes.
// POST /api/audit-exceptions
func (h *Handler) CreateAuditException(w http.ResponseWriter, r *http.Request) {
	var req CreateAuditExceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	e, err := h.Store.AddAuditException(r.Context(), generic.PaymentID(req.PaymentID), req.Reason, req.CreatedBy)
	if err != nil {
		writeDomainError(w, "Failed to add audit exception", err)
		return
	}
	h.Logger.Info("audit exception added",
		zap.String("payment_id", req.PaymentID),
		zap.String("created_by", req.CreatedBy),
	)

	if err := h.recompute(r.Context()); err != nil {
		h.Logger.Error("recompute after audit exception failed", zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, toAuditExceptionDTO(e))
}

// DeleteAuditException removes a suppression and recomputes.
// DELETE /api/audit-exceptions/{id}
func (h *Handler) DeleteAuditException(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.RemoveAuditException(r.Context(), generic.ExceptionID(id)); err != nil {
		writeDomainError(w, "Failed to remove audit exception", err)
		return
	}
	h.Logger.Info("audit exception removed", zap.String("id", id))

	if err := h.recompute(r.Context()); err != nil {
		h.Logger.Error("recompute after audit exception removal failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RECOMPUTE
// =============================================================================

// Recompute reloads the snapshot and publishes a new state.
// POST /api/recompute
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	state, err := h.Recomputer.Trigger(r.Context())
	if err != nil {
		writeDomainError(w, "Recompute failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RecomputeResponse{
		Month:      state.Month.String(),
		Payments:   len(state.Attributed),
		Flagged:    len(state.Anomalies.FlaggedIDs()),
		ComputedAt: state.ComputedAt,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the sentinel err wraps.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrDuplicateException), errors.Is(err, generic.ErrSuperseded):
		return http.StatusConflict
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrNotComputed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// monthParam reads a YYYY-MM query parameter, falling back to def when absent.
func monthParam(r *http.Request, name string, def generic.MonthKey) (generic.MonthKey, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	return generic.ParseMonthKey(raw)
}

// windowParam builds an inclusive day window. A missing bound is open.
func windowParam(from, to string) (generic.Period, error) {
	start := generic.NewTimePoint(1, 1, 1)
	end := generic.NewTimePoint(9999, 12, 31)
	var err error
	if from != "" {
		if start, err = generic.ParseDay(from); err != nil {
			return generic.Period{}, eris.Wrap(generic.ErrInvalidPeriod, err.Error())
		}
	}
	if to != "" {
		if end, err = generic.ParseDay(to); err != nil {
			return generic.Period{}, eris.Wrap(generic.ErrInvalidPeriod, err.Error())
		}
	}
	return generic.NewPeriod(start, end)
}
