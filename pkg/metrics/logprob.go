package metrics

// SecondaryScorer compares a prediction against a gold answer and returns a
// score in [0, 1]. It is an optional refinement of the confidence objective.
type SecondaryScorer func(pred, gold string) float64

// secondaryBonusWeight scales the optional secondary-scorer contribution so it
// can break ties without drowning the log-probability signal.
const secondaryBonusWeight = 0.05

// Confidence aggregates per-token log-probabilities into a scalar certainty
// proxy. When a secondary scorer is configured it contributes a small bonus
// against the gold answer. The penalty term is a reserved extension point for
// negative-continuation scoring and currently always contributes zero; the
// negatives argument exists for that same future use.
func Confidence(pred string, tokenLogprobs []float64, gold string, negatives []string, scorer SecondaryScorer) float64 {
	lp := 0.0
	for _, v := range tokenLogprobs {
		lp += v
	}

	penalty := 0.0 // placeholder for negative continuation scoring

	bonus := 0.0
	if scorer != nil {
		bonus = secondaryBonusWeight * scorer(pred, gold)
	}

	return lp + bonus - 0.5*penalty
}
