/*
Package sales defines the canonical sales data model and the first stages of
the engine pipeline: handle normalization, source attribution and global
purchase ranking.

PURPOSE:
  Every store (memory, SQLite, Postgres) maps its rows into the types in this
  file at the ingestion boundary. Downstream packages (payroll, audit, funnel)
  consume only these shapes.

KEY CONCEPTS:
  - Payment: a single client purchase, attributed to a manager and a geo
  - Lead: a chat handle seen by the sales team, optionally flagged as coming
    from comments
  - Manager: a team member with a role and a primary geo
  - RateOverride / ProductRate / TierRule / KPISettings: compensation inputs
  - ScheduleEntry: a manager's shift on a day, covering one or more geos
  - AuditException: suppresses a payment from anomaly views

PIPELINE:
  raw payments + leads
    -> NormalizeHandle (nickname.go)
    -> Attribute (attribution.go)
    -> RankAll over the full history (rank.go)
    -> payroll / audit / funnel

SEE ALSO:
  - store.go: Source interfaces consumed by the engine
  - ../payroll: Compensation calculation
  - ../audit: Anomaly and schedule audits
*/
package sales

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/astropanel/sales-engine/generic"
)

// =============================================================================
// PAYMENT
// =============================================================================

// Payment is one client purchase. Amount is already converted to EUR.
type Payment struct {
	ID              generic.PaymentID
	ClientHandle    string
	TransactionDate time.Time
	Amount          decimal.Decimal
	ProductName     string
	PaymentMethod   string
	ManagerID       generic.ManagerID // empty when unassigned
	Country         string
}

var phonePattern = regexp.MustCompile(`^[\d\s+()\-]+$`)

// IsPhoneLike reports whether the client handle looks like a phone number:
// only digits, spaces, '+', '(', ')' and '-'.
func (p Payment) IsPhoneLike() bool {
	h := strings.TrimSpace(p.ClientHandle)
	return h != "" && phonePattern.MatchString(h)
}

// NormalizedHandle is NormalizeHandle applied to the client handle.
func (p Payment) NormalizedHandle() string {
	return NormalizeHandle(p.ClientHandle)
}

// =============================================================================
// LEAD
// =============================================================================

// Lead is a chat handle known to the sales team. IsComment is nil when the
// origin was never recorded.
type Lead struct {
	ChatHandle string
	IsComment  *bool
}

// =============================================================================
// MANAGER
// =============================================================================

type Role string

const (
	RoleSales       Role = "Sales"
	RoleSeniorSales Role = "SeniorSales"
	RoleSalesTaro   Role = "SalesTaro"
	RoleConsultant  Role = "Consultant"
	RoleSMM         Role = "SMM"
	RoleAdmin       Role = "Admin"
	RoleCLevel      Role = "C-level"
)

// IsSales reports whether the role takes part in payroll and shift audits.
func (r Role) IsSales() bool {
	switch r {
	case RoleSales, RoleSeniorSales, RoleSalesTaro:
		return true
	default:
		return false
	}
}

type Manager struct {
	ID         generic.ManagerID
	Name       string
	Role       Role
	PrimaryGeo string
	CreatedAt  time.Time
}

// UnassignedName is the display name used when a payment references a
// manager that does not exist.
const UnassignedName = "unassigned"

// ManagerDirectory resolves manager references with the documented fallback:
// unknown ids become an "unassigned" Sales manager.
type ManagerDirectory struct {
	byID map[generic.ManagerID]Manager
}

func NewManagerDirectory(managers []Manager) ManagerDirectory {
	byID := make(map[generic.ManagerID]Manager, len(managers))
	for _, m := range managers {
		byID[m.ID] = m
	}
	return ManagerDirectory{byID: byID}
}

// Lookup returns the manager and whether it was found. Missing managers are
// returned as {ID: id, Name: "unassigned", Role: Sales}.
func (d ManagerDirectory) Lookup(id generic.ManagerID) (Manager, bool) {
	if m, ok := d.byID[id]; ok {
		return m, true
	}
	return Manager{ID: id, Name: UnassignedName, Role: RoleSales}, false
}

// =============================================================================
// COMPENSATION INPUTS
// =============================================================================

// DefaultScope is the scope of a manager-wide rate override.
const DefaultScope = "default"

// RateOverride replaces the global base rate, bonus and penalty for a manager,
// either for every month (Scope "default") or for one month (Scope "YYYY-MM").
type RateOverride struct {
	ManagerID generic.ManagerID
	Scope     string
	BaseRate  decimal.Decimal
	Bonus     decimal.Decimal
	Penalty   decimal.Decimal
}

// ProductRate rewards every sale whose product name contains Pattern
// (case-insensitive).
type ProductRate struct {
	Pattern       string
	RewardPerSale decimal.Decimal
}

// TierRule is an inclusive [Min, Max] sales-count band.
type TierRule struct {
	Min    int             `json:"min" yaml:"min"`
	Max    int             `json:"max" yaml:"max"`
	Reward decimal.Decimal `json:"reward" yaml:"reward"`
}

// Contains reports whether count falls in [Min, Max].
func (t TierRule) Contains(count int) bool {
	return count >= t.Min && count <= t.Max
}

// KPISettings holds the global compensation configuration.
type KPISettings struct {
	BaseSalary   decimal.Decimal
	DailyTiers   []TierRule
	MonthlyTiers []TierRule
}

// =============================================================================
// SCHEDULE
// =============================================================================

// ScheduleEntry is one shift. GeoCodes is comma-joined; more than one code
// makes it a multi-geo shift.
type ScheduleEntry struct {
	ManagerID generic.ManagerID
	Date      generic.TimePoint
	GeoCodes  string
}

// IsMultiGeo reports whether the shift covers several geos.
func (s ScheduleEntry) IsMultiGeo() bool {
	return strings.Contains(s.GeoCodes, ",")
}

// Geos splits GeoCodes on commas and returns the upper-cased codes, dropping
// empty ones. Every schedule check keys geos by this form.
func (s ScheduleEntry) Geos() []string {
	var geos []string
	for _, g := range strings.Split(s.GeoCodes, ",") {
		if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
			geos = append(geos, g)
		}
	}
	return geos
}

// =============================================================================
// AUDIT EXCEPTION
// =============================================================================

// AuditException hides a payment from anomaly views without deleting it.
type AuditException struct {
	ID        generic.ExceptionID
	PaymentID generic.PaymentID
	Reason    string
	CreatedBy string
	CreatedAt time.Time
}

// SuppressedSet returns the payment ids covered by exceptions.
func SuppressedSet(exceptions []AuditException) map[generic.PaymentID]bool {
	set := make(map[generic.PaymentID]bool, len(exceptions))
	for _, e := range exceptions {
		set[e.PaymentID] = true
	}
	return set
}
