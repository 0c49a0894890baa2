package payroll

import (
	"strings"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// TEAM GROUPS
// =============================================================================

// TeamGroup is a named set of geos that compete together.
type TeamGroup struct {
	Name string   `mapstructure:"name" yaml:"name"`
	Geos []string `mapstructure:"geos" yaml:"geos"`
}

// TeamGroups is ordered. The order is the tie-break of the competition.
type TeamGroups []TeamGroup

// DefaultTeamGroups is the stock three-group split used when configuration
// does not provide one.
func DefaultTeamGroups() TeamGroups {
	return TeamGroups{
		{Name: "east", Geos: []string{"UA", "KZ", "UZ", "MD"}},
		{Name: "central", Geos: []string{"PL", "CZ", "SK", "RO"}},
		{Name: "west", Geos: []string{"DE", "IT", "ES", "FR"}},
	}
}

// GroupOf returns the group containing geo (case-insensitive).
func (tg TeamGroups) GroupOf(geo string) (string, bool) {
	geo = strings.TrimSpace(geo)
	for _, g := range tg {
		for _, code := range g.Geos {
			if strings.EqualFold(code, geo) {
				return g.Name, true
			}
		}
	}
	return "", false
}

// =============================================================================
// COMPETITION
// =============================================================================

type TeamStanding struct {
	Group string
	Sales int
}

// TeamResult is the outcome of the monthly team competition.
type TeamResult struct {
	Standings []TeamStanding // in group order
	Winner    string         // empty when no group sold anything
}

// Compete totals sales per group and picks the group with the strictly
// highest positive total. Walking groups in their configured order means an
// equal total never displaces an earlier group, so ties go to the group
// listed first.
func (tg TeamGroups) Compete(managers []sales.Manager, salesByManager map[generic.ManagerID]int) TeamResult {
	totals := make(map[string]int, len(tg))
	for _, m := range managers {
		group, ok := tg.GroupOf(m.PrimaryGeo)
		if !ok {
			continue
		}
		totals[group] += salesByManager[m.ID]
	}

	result := TeamResult{}
	best := 0
	for _, g := range tg {
		total := totals[g.Name]
		result.Standings = append(result.Standings, TeamStanding{Group: g.Name, Sales: total})
		if total > best {
			best = total
			result.Winner = g.Name
		}
	}
	return result
}
