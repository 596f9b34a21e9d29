package gepa

// Dominates reports whether a Pareto-dominates b: a is at least as good on
// every objective and strictly better on at least one. Equal scores never
// dominate each other.
func Dominates(a, b Score) bool {
	if a.Exact < b.Exact || a.Grounding < b.Grounding || a.Confidence < b.Confidence {
		return false
	}
	return a.Exact > b.Exact || a.Grounding > b.Grounding || a.Confidence > b.Confidence
}

// ParetoFront returns the indices of the non-dominated scores, in input order.
// Pairwise O(n^2); population sizes are tens by construction, so no attempt is
// made at anything cleverer.
func ParetoFront(scores []Score) []int {
	front := make([]int, 0, len(scores))
	for i, s := range scores {
		dominated := false
		for j, other := range scores {
			if i != j && Dominates(other, s) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, i)
		}
	}
	return front
}
