package metrics

import "strings"

// GroundingScore is a lexical overlap proxy in [0, 1]: the fraction of unique
// whitespace-split tokens of the lowercased source text that occur as
// substrings of the lowercased prediction. Empty sources ground nothing.
func GroundingScore(pred, sources string) float64 {
	predL := strings.ToLower(pred)
	srcL := strings.ToLower(sources)
	if srcL == "" {
		return 0.0
	}

	unique := make(map[string]struct{})
	for _, tok := range strings.Fields(srcL) {
		unique[tok] = struct{}{}
	}

	hits := 0
	for tok := range unique {
		if strings.Contains(predL, tok) {
			hits++
		}
	}
	return float64(hits) / float64(max(1, len(unique)))
}
