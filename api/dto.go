/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's result types from the dashboard contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Every amount is a decimal.Decimal, which marshals as a JSON string
  ("49.99"), so the dashboard never sees float rounding.

TYPES:
  Payroll:    PayrollDTO, PayrollLineDTO, DayTierDTO, TeamStandingDTO
  Attribution: AttributionDTO, SourceStatsDTO, AttributedPaymentDTO
  Audit:      AnomalyReportDTO, DuplicateClusterDTO, ScheduleReportDTO
  Funnel:     FunnelDTO, GeoFunnelDTO
  Exceptions: AuditExceptionDTO, CreateAuditExceptionRequest
  Scenarios:  LoadScenarioRequest (scenarios.Info is served as is)

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/astropanel/sales-engine/audit"
	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/funnel"
	"github.com/astropanel/sales-engine/payroll"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// PAYROLL
// =============================================================================

type DayTierDTO struct {
	Day    string          `json:"day"`
	Sales  int             `json:"sales"`
	Reward decimal.Decimal `json:"reward"`
	Tier   int             `json:"tier"`
}

// PayrollLineDTO is one manager's monthly breakdown.
type PayrollLineDTO struct {
	ManagerID  string `json:"manager_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	PrimaryGeo string `json:"primary_geo"`
	TeamGroup  string `json:"team_group,omitempty"`

	SalesCount int             `json:"sales_count"`
	Revenue    decimal.Decimal `json:"revenue"`

	BaseRate       decimal.Decimal `json:"base_rate"`
	OverrideScope  string          `json:"override_scope,omitempty"`
	PerShiftRate   decimal.Decimal `json:"per_shift_rate"`
	RegularShifts  int             `json:"regular_shifts"`
	MultiGeoShifts int             `json:"multi_geo_shifts"`

	ShiftPay     decimal.Decimal `json:"shift_pay"`
	ProductBonus decimal.Decimal `json:"product_bonus"`
	DailyBonus   decimal.Decimal `json:"daily_bonus"`
	MonthlyBonus decimal.Decimal `json:"monthly_bonus"`
	TeamBonus    decimal.Decimal `json:"team_bonus"`
	Bonus        decimal.Decimal `json:"bonus"`
	Penalty      decimal.Decimal `json:"penalty"`
	TotalSalary  decimal.Decimal `json:"total_salary"`

	Days []DayTierDTO `json:"days"`
}

type TeamStandingDTO struct {
	Group string `json:"group"`
	Sales int    `json:"sales"`
}

type PayrollDTO struct {
	Month     string            `json:"month"`
	Lines     []PayrollLineDTO  `json:"lines"`
	Standings []TeamStandingDTO `json:"team_standings"`
	Winner    string            `json:"team_winner,omitempty"`
	Total     decimal.Decimal   `json:"total"`
}

// ToPayrollDTO converts a computed payroll into its wire form.
func ToPayrollDTO(p payroll.Payroll) PayrollDTO {
	dto := PayrollDTO{
		Month:     p.Month.String(),
		Lines:     make([]PayrollLineDTO, 0, len(p.Lines)),
		Standings: make([]TeamStandingDTO, 0, len(p.Teams.Standings)),
		Winner:    p.Teams.Winner,
		Total:     p.Total,
	}
	for _, l := range p.Lines {
		days := make([]DayTierDTO, 0, len(l.Days))
		for _, d := range l.Days {
			days = append(days, DayTierDTO{Day: d.Day, Sales: d.Sales, Reward: d.Reward, Tier: d.Tier})
		}
		dto.Lines = append(dto.Lines, PayrollLineDTO{
			ManagerID:      string(l.ManagerID),
			Name:           l.Name,
			Role:           string(l.Role),
			PrimaryGeo:     l.PrimaryGeo,
			TeamGroup:      l.TeamGroup,
			SalesCount:     l.SalesCount,
			Revenue:        l.Revenue,
			BaseRate:       l.EffectiveBaseRate,
			OverrideScope:  l.Rate.Scope,
			PerShiftRate:   l.PerShiftRate,
			RegularShifts:  l.RegularShifts,
			MultiGeoShifts: l.MultiGeoShifts,
			ShiftPay:       l.ShiftPay,
			ProductBonus:   l.ProductBonus,
			DailyBonus:     l.DailyBonus,
			MonthlyBonus:   l.MonthlyBonus,
			TeamBonus:      l.TeamBonus,
			Bonus:          l.Bonus,
			Penalty:        l.Penalty,
			TotalSalary:    l.TotalSalary,
			Days:           days,
		})
	}
	for _, s := range p.Teams.Standings {
		dto.Standings = append(dto.Standings, TeamStandingDTO{Group: s.Group, Sales: s.Sales})
	}
	return dto
}

// =============================================================================
// ATTRIBUTION
// =============================================================================

type SourceStatsDTO struct {
	Source  string          `json:"source"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// AttributedPaymentDTO is a payment row as the dashboard tables show it.
type AttributedPaymentDTO struct {
	ID              string          `json:"id"`
	ClientHandle    string          `json:"client_handle"`
	TransactionDate time.Time       `json:"transaction_date"`
	Amount          decimal.Decimal `json:"amount"`
	ProductName     string          `json:"product_name"`
	ManagerID       string          `json:"manager_id,omitempty"`
	Country         string          `json:"country"`
	Source          string          `json:"source"`
	Rank            int             `json:"rank,omitempty"`
}

type AttributionDTO struct {
	Total    int                    `json:"total"`
	BySource []SourceStatsDTO       `json:"by_source"`
	Payments []AttributedPaymentDTO `json:"payments"`
}

func toPaymentDTOs(ps []sales.AttributedPayment, ranks sales.Ranks) []AttributedPaymentDTO {
	out := make([]AttributedPaymentDTO, 0, len(ps))
	for _, p := range ps {
		rank, _ := ranks.Of(p.ID)
		out = append(out, AttributedPaymentDTO{
			ID:              string(p.ID),
			ClientHandle:    p.ClientHandle,
			TransactionDate: p.TransactionDate,
			Amount:          p.Amount,
			ProductName:     p.ProductName,
			ManagerID:       string(p.ManagerID),
			Country:         p.Country,
			Source:          string(p.Source),
			Rank:            rank,
		})
	}
	return out
}

func toAttributionDTO(state *engine.DerivedState) AttributionDTO {
	dto := AttributionDTO{
		Total:    state.Attribution.Total,
		Payments: toPaymentDTOs(state.Attributed, state.Ranks),
	}
	for _, s := range state.Attribution.BySource {
		dto.BySource = append(dto.BySource, SourceStatsDTO{Source: string(s.Source), Count: s.Count, Revenue: s.Revenue})
	}
	return dto
}

// =============================================================================
// AUDIT
// =============================================================================

type DuplicateClusterDTO struct {
	Handle   string                 `json:"handle"`
	Product  string                 `json:"product"`
	Amount   string                 `json:"amount"`
	Payments []AttributedPaymentDTO `json:"payments"`
}

type AnomalyReportDTO struct {
	FutureDated      []AttributedPaymentDTO `json:"future_dated"`
	Duplicates       []DuplicateClusterDTO  `json:"duplicates"`
	AnomalousAmounts []AttributedPaymentDTO `json:"anomalous_amounts"`
	LinkNicknames    []AttributedPaymentDTO `json:"link_nicknames"`
	Suppressed       int                    `json:"suppressed"`
	FlaggedIDs       []string               `json:"flagged_ids"`
}

// ToAnomalyReportDTO converts an anomaly report, ranking each flagged payment.
func ToAnomalyReportDTO(r audit.Report, ranks sales.Ranks) AnomalyReportDTO {
	dto := AnomalyReportDTO{
		FutureDated:      toPaymentDTOs(r.FutureDated, ranks),
		Duplicates:       make([]DuplicateClusterDTO, 0, len(r.Duplicates)),
		AnomalousAmounts: toPaymentDTOs(r.AnomalousAmounts, ranks),
		LinkNicknames:    toPaymentDTOs(r.LinkNicknames, ranks),
		Suppressed:       r.Suppressed,
		FlaggedIDs:       []string{},
	}
	for _, c := range r.Duplicates {
		dto.Duplicates = append(dto.Duplicates, DuplicateClusterDTO{
			Handle:   c.Handle,
			Product:  c.Product,
			Amount:   c.Amount,
			Payments: toPaymentDTOs(c.Payments, ranks),
		})
	}
	for _, id := range r.FlaggedIDs() {
		dto.FlaggedIDs = append(dto.FlaggedIDs, string(id))
	}
	return dto
}

type AssignmentConflictDTO struct {
	Date     string   `json:"date"`
	Geo      string   `json:"geo"`
	Managers []string `json:"managers"`
}

type CoverageGapDTO struct {
	Date string `json:"date"`
	Geo  string `json:"geo"`
}

type ScheduleReportDTO struct {
	Month               string                  `json:"month"`
	Conflicts           []AssignmentConflictDTO `json:"conflicts"`
	MissingCoverage     []CoverageGapDTO        `json:"missing_coverage"`
	GeosWithoutSchedule []string                `json:"geos_without_schedule"`
}

// ToScheduleReportDTO converts a schedule audit into its wire form.
func ToScheduleReportDTO(r audit.ScheduleReport) ScheduleReportDTO {
	dto := ScheduleReportDTO{
		Month:               r.Month.String(),
		Conflicts:           make([]AssignmentConflictDTO, 0, len(r.Conflicts)),
		MissingCoverage:     make([]CoverageGapDTO, 0, len(r.MissingCoverage)),
		GeosWithoutSchedule: append([]string{}, r.GeosWithoutSchedule...),
	}
	for _, c := range r.Conflicts {
		managers := make([]string, 0, len(c.Managers))
		for _, m := range c.Managers {
			managers = append(managers, string(m))
		}
		dto.Conflicts = append(dto.Conflicts, AssignmentConflictDTO{Date: c.Date.String(), Geo: c.Geo, Managers: managers})
	}
	for _, g := range r.MissingCoverage {
		dto.MissingCoverage = append(dto.MissingCoverage, CoverageGapDTO{Date: g.Date.String(), Geo: g.Geo})
	}
	return dto
}

// =============================================================================
// FUNNEL
// =============================================================================

type GeoFunnelDTO struct {
	Geo         string     `json:"geo"`
	Counts      [4]int     `json:"counts"`
	Conversions [3]float64 `json:"conversions"`
}

type FunnelDTO struct {
	Geos []GeoFunnelDTO `json:"geos"`
}

func toFunnelDTO(f funnel.Funnel) FunnelDTO {
	dto := FunnelDTO{Geos: make([]GeoFunnelDTO, 0, len(f.Geos))}
	for _, g := range f.Geos {
		dto.Geos = append(dto.Geos, GeoFunnelDTO{Geo: g.Geo, Counts: g.Counts, Conversions: g.Conversions})
	}
	return dto
}

// =============================================================================
// AUDIT EXCEPTIONS
// =============================================================================

type AuditExceptionDTO struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateAuditExceptionRequest is the request to suppress a payment.
type CreateAuditExceptionRequest struct {
	PaymentID string `json:"payment_id" validate:"required,max=128"`
	Reason    string `json:"reason" validate:"max=500"`
	CreatedBy string `json:"created_by" validate:"max=128"`
}

func toAuditExceptionDTO(e sales.AuditException) AuditExceptionDTO {
	return AuditExceptionDTO{
		ID:        string(e.ID),
		PaymentID: string(e.PaymentID),
		Reason:    e.Reason,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
	}
}

// =============================================================================
// MISC
// =============================================================================

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// RecomputeResponse summarizes a finished recompute.
type RecomputeResponse struct {
	Month      string    `json:"month"`
	Payments   int       `json:"payments"`
	Flagged    int       `json:"flagged"`
	ComputedAt time.Time `json:"computed_at"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
