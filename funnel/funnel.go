// Package funnel counts first, second, third and fourth purchases per geo and
// the conversion between consecutive stages.
//
// Ranks always come from sales.RankAll over the whole history. The window and
// filters only choose which already-ranked payments are counted.
package funnel

import (
	"sort"
	"strings"
	"time"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// Stages is the number of purchase ranks tracked.
const Stages = 4

// Department narrows which managers' repeat sales count.
type Department string

const (
	DepartmentAll        Department = "all"
	DepartmentSales      Department = "sales"
	DepartmentConsultant Department = "consultant"
)

// ParseDepartment maps free text to a Department; unknown values mean all.
func ParseDepartment(s string) Department {
	switch Department(strings.ToLower(strings.TrimSpace(s))) {
	case DepartmentSales:
		return DepartmentSales
	case DepartmentConsultant:
		return DepartmentConsultant
	default:
		return DepartmentAll
	}
}

func (d Department) admits(role sales.Role) bool {
	switch d {
	case DepartmentSales:
		return role == sales.RoleSales || role == sales.RoleSeniorSales
	case DepartmentConsultant:
		return role == sales.RoleConsultant
	default:
		return true
	}
}

// Filter selects the payments counted. A zero Window counts every date; an
// empty Geo counts every geo.
type Filter struct {
	Window     *generic.Period
	Geo        string
	Department Department
	Location   *time.Location
}

// GeoFunnel is one geo's row.
type GeoFunnel struct {
	Geo string
	// Counts[i] is the number of rank i+1 payments.
	Counts [Stages]int
	// Conversions[i] is Counts[i+1] / Counts[i] * 100, or 0 when Counts[i] is 0.
	Conversions [Stages - 1]float64
}

// Funnel is the aggregated result, geos sorted by name.
type Funnel struct {
	Geos []GeoFunnel
}

// Conversion returns next/prev as a percentage, 0 when prev is 0.
func Conversion(prev, next int) float64 {
	if prev == 0 {
		return 0
	}
	return float64(next*100) / float64(prev)
}

// Aggregate builds the funnel. Payments ranked beyond Stages or without a rank
// are ignored. Rank 1 is counted for every department; ranks 2 and up only
// when the payment's manager belongs to the filter's department.
func Aggregate(payments []sales.Payment, ranks sales.Ranks, managers sales.ManagerDirectory, f Filter) Funnel {
	rows := make(map[string]*GeoFunnel)
	for _, p := range payments {
		if f.Window != nil && !f.Window.ContainsTime(p.TransactionDate, f.Location) {
			continue
		}
		geo := strings.TrimSpace(p.Country)
		if f.Geo != "" && !strings.EqualFold(geo, f.Geo) {
			continue
		}
		rank, ok := ranks.Of(p.ID)
		if !ok || rank > Stages {
			continue
		}
		if rank > 1 {
			m, _ := managers.Lookup(p.ManagerID)
			if !f.Department.admits(m.Role) {
				continue
			}
		}

		row, ok := rows[geo]
		if !ok {
			row = &GeoFunnel{Geo: geo}
			rows[geo] = row
		}
		row.Counts[rank-1]++
	}

	out := Funnel{Geos: make([]GeoFunnel, 0, len(rows))}
	for _, row := range rows {
		for i := 0; i < Stages-1; i++ {
			row.Conversions[i] = Conversion(row.Counts[i], row.Counts[i+1])
		}
		out.Geos = append(out.Geos, *row)
	}
	sort.Slice(out.Geos, func(i, j int) bool { return out.Geos[i].Geo < out.Geos[j].Geo })
	return out
}

// Geo returns the row for geo, if present.
func (f Funnel) Geo(geo string) (GeoFunnel, bool) {
	for _, g := range f.Geos {
		if strings.EqualFold(g.Geo, geo) {
			return g, true
		}
	}
	return GeoFunnel{}, false
}
