package sales

import (
	"sort"
	"strings"

	"github.com/astropanel/sales-engine/generic"
)

// =============================================================================
// GLOBAL PURCHASE RANK
// =============================================================================

// PlaceholderHandle is written by the dashboard when a client has no handle.
const PlaceholderHandle = "—"

// Ranks maps payment ids to the client's 1-based purchase sequence number.
//
// Ranks are global: they must be computed once from the full payment history
// via RankAll and threaded to every filtered view. Recomputing them on a
// filtered subset would renumber a client's third purchase as their first.
type Ranks struct {
	byPayment map[generic.PaymentID]int
}

// Of returns the payment's rank and whether it has one. Payments without a
// usable handle have no rank.
func (r Ranks) Of(id generic.PaymentID) (int, bool) {
	rank, ok := r.byPayment[id]
	return rank, ok
}

// Len returns the number of ranked payments.
func (r Ranks) Len() int { return len(r.byPayment) }

// RankAll groups payments by normalized handle and numbers each group in
// ascending transaction date. Payments with equal timestamps keep their input
// order, so callers that need full determinism must supply a stable order.
func RankAll(all []Payment) Ranks {
	groups := make(map[string][]Payment)
	for _, p := range all {
		h := strings.TrimSpace(p.NormalizedHandle())
		if h == "" || h == PlaceholderHandle {
			continue
		}
		groups[h] = append(groups[h], p)
	}

	ranks := Ranks{byPayment: make(map[generic.PaymentID]int, len(all))}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TransactionDate.Before(group[j].TransactionDate)
		})
		for i, p := range group {
			ranks.byPayment[p.ID] = i + 1
		}
	}
	return ranks
}
