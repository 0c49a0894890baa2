package generic

// =============================================================================
// FIRST-MATCH RULE EVALUATION
// =============================================================================

// FirstMatch walks rules in order and returns the first one accepted by
// match, together with its index. Product rates and tier tables are ordered
// lists where overlaps are allowed; the earliest rule always wins.
//
// It returns the zero value, -1 and false when no rule matches.
func FirstMatch[T any](rules []T, match func(T) bool) (T, int, bool) {
	for i, r := range rules {
		if match(r) {
			return r, i, true
		}
	}
	var zero T
	return zero, -1, false
}
