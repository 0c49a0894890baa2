package audit

import (
	"sort"
	"strings"
	"time"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// DefaultExcludedTargets are schedule targets that never need coverage.
var DefaultExcludedTargets = []string{"1-й месяц"}

// =============================================================================
// FINDINGS
// =============================================================================

// AssignmentConflict is a (date, geo) slot held by more than one sales manager.
type AssignmentConflict struct {
	Date     generic.TimePoint
	Geo      string
	Managers []generic.ManagerID // sorted, distinct
}

// CoverageGap is a (date, geo) slot of an active geo with nobody assigned.
type CoverageGap struct {
	Date generic.TimePoint
	Geo  string
}

// ScheduleReport bundles the three schedule audits for one month.
type ScheduleReport struct {
	Month               generic.MonthKey
	Conflicts           []AssignmentConflict
	MissingCoverage     []CoverageGap
	GeosWithoutSchedule []string
}

// =============================================================================
// AUDITOR
// =============================================================================

// ScheduleAuditor checks shift schedules against the manager directory and the
// configured geo lists.
type ScheduleAuditor struct {
	Managers        sales.ManagerDirectory
	RequiredGeos    []string
	ExcludedTargets []string
}

// NewScheduleAuditor uses DefaultExcludedTargets when excluded is empty.
func NewScheduleAuditor(managers []sales.Manager, requiredGeos, excluded []string) *ScheduleAuditor {
	if len(excluded) == 0 {
		excluded = DefaultExcludedTargets
	}
	return &ScheduleAuditor{
		Managers:        sales.NewManagerDirectory(managers),
		RequiredGeos:    requiredGeos,
		ExcludedTargets: excluded,
	}
}

// Audit runs every schedule check for month. Entries outside the month are
// ignored.
func (a *ScheduleAuditor) Audit(month generic.MonthKey, schedules []sales.ScheduleEntry) ScheduleReport {
	inMonth := entriesIn(month, schedules)
	return ScheduleReport{
		Month:               month,
		Conflicts:           a.DuplicateAssignments(inMonth),
		MissingCoverage:     a.MissingCoverage(month, inMonth),
		GeosWithoutSchedule: a.GeosWithoutSchedule(month, inMonth),
	}
}

// DuplicateAssignments splits every sales-role entry into single geos and
// reports (date, geo) slots assigned to more than one distinct manager.
// Managers missing from the directory count as Sales.
func (a *ScheduleAuditor) DuplicateAssignments(schedules []sales.ScheduleEntry) []AssignmentConflict {
	type slot struct {
		date string
		geo  string
	}
	holders := make(map[slot]map[generic.ManagerID]struct{})
	dates := make(map[string]generic.TimePoint)

	for _, s := range schedules {
		m, _ := a.Managers.Lookup(s.ManagerID)
		if !m.Role.IsSales() {
			continue
		}
		d := s.Date.String()
		dates[d] = s.Date
		for _, geo := range s.Geos() {
			k := slot{date: d, geo: geo}
			if holders[k] == nil {
				holders[k] = make(map[generic.ManagerID]struct{})
			}
			holders[k][s.ManagerID] = struct{}{}
		}
	}

	var out []AssignmentConflict
	for k, ids := range holders {
		if len(ids) < 2 {
			continue
		}
		managers := make([]generic.ManagerID, 0, len(ids))
		for id := range ids {
			managers = append(managers, id)
		}
		sort.Slice(managers, func(i, j int) bool { return managers[i] < managers[j] })
		out = append(out, AssignmentConflict{Date: dates[k.date], Geo: k.geo, Managers: managers})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Geo < out[j].Geo
	})
	return out
}

// MissingCoverage reports, for each geo with at least one entry in the month,
// the dates of the month on which nobody covers it. Excluded targets are
// skipped, and so is every date in January.
//
// The January skip is long-standing behavior that operators rely on. It is
// kept as-is until product decides otherwise.
func (a *ScheduleAuditor) MissingCoverage(month generic.MonthKey, schedules []sales.ScheduleEntry) []CoverageGap {
	covered := make(map[string]map[string]bool) // geo -> date -> covered
	var active []string
	for _, s := range entriesIn(month, schedules) {
		for _, geo := range s.Geos() {
			if a.excluded(geo) {
				continue
			}
			if covered[geo] == nil {
				covered[geo] = make(map[string]bool)
				active = append(active, geo)
			}
			covered[geo][s.Date.String()] = true
		}
	}
	sort.Strings(active)

	var gaps []CoverageGap
	for _, day := range month.Period().Days() {
		if day.Month() == time.January {
			continue
		}
		for _, geo := range active {
			if !covered[geo][day.String()] {
				gaps = append(gaps, CoverageGap{Date: day, Geo: geo})
			}
		}
	}
	return gaps
}

// GeosWithoutSchedule returns the required geos with zero entries in the
// month. A geo reported here never appears in MissingCoverage, because only
// geos with an entry are active.
func (a *ScheduleAuditor) GeosWithoutSchedule(month generic.MonthKey, schedules []sales.ScheduleEntry) []string {
	seen := make(map[string]bool)
	for _, s := range entriesIn(month, schedules) {
		for _, geo := range s.Geos() {
			seen[strings.ToUpper(geo)] = true
		}
	}

	var out []string
	for _, geo := range a.RequiredGeos {
		geo = strings.TrimSpace(geo)
		if geo == "" || a.excluded(geo) {
			continue
		}
		if !seen[strings.ToUpper(geo)] {
			out = append(out, geo)
		}
	}
	return out
}

func (a *ScheduleAuditor) excluded(geo string) bool {
	for _, t := range a.ExcludedTargets {
		if strings.EqualFold(strings.TrimSpace(t), geo) {
			return true
		}
	}
	return false
}

func entriesIn(month generic.MonthKey, schedules []sales.ScheduleEntry) []sales.ScheduleEntry {
	period := month.Period()
	out := make([]sales.ScheduleEntry, 0, len(schedules))
	for _, s := range schedules {
		if period.Contains(s.Date) {
			out = append(out, s)
		}
	}
	return out
}
