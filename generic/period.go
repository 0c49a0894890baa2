package generic

import "time"

// =============================================================================
// PERIOD - Inclusive day range
// =============================================================================

// Period is an inclusive range of calendar days [Start, End]. Payroll months,
// schedule audits and funnel windows are all periods.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates and builds a period.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the day is within the period [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// ContainsTime reports whether the calendar day of t in loc lies in the period.
func (p Period) ContainsTime(t time.Time, loc *time.Location) bool {
	return p.Contains(DayOf(t, loc))
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthPeriod returns the period of the month containing day.
func MonthPeriod(day TimePoint) Period {
	return day.MonthKey().Period()
}
