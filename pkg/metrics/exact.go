// Package metrics provides the pure scoring primitives for prompt evaluation:
// exact-match correctness, lexical grounding against source text, and a
// log-probability confidence proxy. All functions are total; malformed inputs
// degrade to zero contributions rather than erroring.
package metrics

import "strings"

// ExactMatch returns 1.0 when the trimmed prediction equals the trimmed gold
// answer, else 0.0. An empty gold can never match.
func ExactMatch(pred, gold string) float64 {
	pred = strings.TrimSpace(pred)
	gold = strings.TrimSpace(gold)
	if gold == "" || pred != gold {
		return 0.0
	}
	return 1.0
}
