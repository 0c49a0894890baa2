/*
Package audit flags data-quality problems in payments and shift schedules.

PURPOSE:
  The dashboard shows anomaly lists so operators can fix bad rows in the
  store. Nothing here mutates data; payments an operator has reviewed are
  hidden through AuditExceptions instead of being deleted.

KEY CONCEPTS:
  - AnomalyDetector (anomalies.go): four independent payment filters
  - ScheduleAuditor (schedule.go): duplicate assignments and coverage gaps

DETECTORS:
  FutureDated       date-only > today's date-only (string comparison)
  Duplicates        same (handle, product, amount to cents) more than once
  AnomalousAmounts  amount < 20 or > 200, with the calendar discount rule
  LinkNicknames     a normalized handle that still looks like a URL

SEE ALSO:
  - sales/rank.go: the calendar rule needs global ranks
  - sales/types.go: AuditException
*/
package audit

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/astropanel/sales-engine/generic"
	"github.com/astropanel/sales-engine/sales"
)

// =============================================================================
// THRESHOLDS
// =============================================================================

var (
	MinNormalAmount = decimal.NewFromInt(20)
	MaxNormalAmount = decimal.NewFromInt(200)

	// Calendar products have a repeat-customer price of 14 to 16.
	CalendarDiscountMin = decimal.NewFromInt(14)
	CalendarDiscountMax = decimal.NewFromInt(16)
)

var calendarMarkers = []string{"календарь", "calendar"}

var linkMarkers = []string{"http", ".com", ".ru", ".net", ".org", "//", "t.me/"}

// IsCalendarProduct reports whether the product name denotes a calendar.
func IsCalendarProduct(name string) bool {
	name = strings.ToLower(name)
	for _, m := range calendarMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// =============================================================================
// DETECTOR
// =============================================================================

// AnomalyDetector holds what the filters need beyond the payments themselves.
type AnomalyDetector struct {
	Clock      generic.Clock
	Location   *time.Location
	Ranks      sales.Ranks
	Suppressed map[generic.PaymentID]bool
}

// NewAnomalyDetector builds a detector whose suppressed set comes from the
// audit exceptions.
func NewAnomalyDetector(ranks sales.Ranks, exceptions []sales.AuditException, clock generic.Clock, loc *time.Location) *AnomalyDetector {
	if clock == nil {
		clock = generic.SystemClock
	}
	return &AnomalyDetector{
		Clock:      clock,
		Location:   loc,
		Ranks:      ranks,
		Suppressed: sales.SuppressedSet(exceptions),
	}
}

// visible drops suppressed payments.
func (d *AnomalyDetector) visible(payments []sales.AttributedPayment) []sales.AttributedPayment {
	out := make([]sales.AttributedPayment, 0, len(payments))
	for _, p := range payments {
		if !d.Suppressed[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// FutureDated returns payments dated after today. Both sides are reduced to
// YYYY-MM-DD strings in the detector's location before comparing.
func (d *AnomalyDetector) FutureDated(payments []sales.AttributedPayment) []sales.AttributedPayment {
	today := generic.Today(d.Clock, d.Location).String()
	var out []sales.AttributedPayment
	for _, p := range d.visible(payments) {
		if generic.DayOf(p.TransactionDate, d.Location).String() > today {
			out = append(out, p)
		}
	}
	return out
}

// DuplicateCluster is a set of payments sharing handle, product and amount.
type DuplicateCluster struct {
	Handle   string
	Product  string
	Amount   string // cents-rounded
	Payments []sales.AttributedPayment
}

type duplicateKey struct {
	handle, product, amount string
}

// Duplicates groups payments by (normalized handle, lower-cased trimmed
// product, amount rounded to cents) and returns every group with more than
// one member. Clusters keep input order internally and are sorted by their
// first member's position.
func (d *AnomalyDetector) Duplicates(payments []sales.AttributedPayment) []DuplicateCluster {
	groups := make(map[duplicateKey][]sales.AttributedPayment)
	var order []duplicateKey
	for _, p := range d.visible(payments) {
		k := duplicateKey{
			handle:  p.NormalizedHandle(),
			product: strings.ToLower(strings.TrimSpace(p.ProductName)),
			amount:  generic.CentsKey(p.Amount),
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], p)
	}

	var clusters []DuplicateCluster
	for _, k := range order {
		if members := groups[k]; len(members) > 1 {
			clusters = append(clusters, DuplicateCluster{
				Handle:   k.handle,
				Product:  k.product,
				Amount:   k.amount,
				Payments: members,
			})
		}
	}
	return clusters
}

// AnomalousAmounts returns payments outside [20, 200]. A calendar product
// priced 14 to 16 is allowed for returning clients (rank > 1); the same price
// on a first purchase, or on a payment without a rank, is flagged.
func (d *AnomalyDetector) AnomalousAmounts(payments []sales.AttributedPayment) []sales.AttributedPayment {
	var out []sales.AttributedPayment
	for _, p := range d.visible(payments) {
		if !p.Amount.LessThan(MinNormalAmount) && !p.Amount.GreaterThan(MaxNormalAmount) {
			continue
		}
		if d.isRepeatCalendarDiscount(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (d *AnomalyDetector) isRepeatCalendarDiscount(p sales.AttributedPayment) bool {
	if !IsCalendarProduct(p.ProductName) {
		return false
	}
	if p.Amount.LessThan(CalendarDiscountMin) || p.Amount.GreaterThan(CalendarDiscountMax) {
		return false
	}
	rank, ok := d.Ranks.Of(p.ID)
	return ok && rank > 1
}

// LinkNicknames returns payments whose normalized handle still contains a
// URL fragment, which usually means a link was pasted into the handle field.
func (d *AnomalyDetector) LinkNicknames(payments []sales.AttributedPayment) []sales.AttributedPayment {
	var out []sales.AttributedPayment
	for _, p := range d.visible(payments) {
		if hasLinkMarker(p.NormalizedHandle()) {
			out = append(out, p)
		}
	}
	return out
}

func hasLinkMarker(handle string) bool {
	for _, m := range linkMarkers {
		if strings.Contains(handle, m) {
			return true
		}
	}
	return false
}

// =============================================================================
// REPORT
// =============================================================================

// Report bundles every detector's output.
type Report struct {
	FutureDated      []sales.AttributedPayment
	Duplicates       []DuplicateCluster
	AnomalousAmounts []sales.AttributedPayment
	LinkNicknames    []sales.AttributedPayment
	Suppressed       int // suppressed payments present in the input
}

// Detect runs all detectors over the full payment set.
func (d *AnomalyDetector) Detect(payments []sales.AttributedPayment) Report {
	suppressed := 0
	for _, p := range payments {
		if d.Suppressed[p.ID] {
			suppressed++
		}
	}
	return Report{
		FutureDated:      d.FutureDated(payments),
		Duplicates:       d.Duplicates(payments),
		AnomalousAmounts: d.AnomalousAmounts(payments),
		LinkNicknames:    d.LinkNicknames(payments),
		Suppressed:       suppressed,
	}
}

// FlaggedIDs returns the sorted ids of every payment flagged by any detector.
func (r Report) FlaggedIDs() []generic.PaymentID {
	set := make(map[generic.PaymentID]struct{})
	add := func(ps []sales.AttributedPayment) {
		for _, p := range ps {
			set[p.ID] = struct{}{}
		}
	}
	add(r.FutureDated)
	add(r.AnomalousAmounts)
	add(r.LinkNicknames)
	for _, c := range r.Duplicates {
		add(c.Payments)
	}

	ids := make([]generic.PaymentID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
