package metrics

import "encoding/json"

// SafeFloat coerces a decoded JSON value to float64. Nulls, strings that do
// not parse, and anything else non-numeric contribute zero rather than
// erroring, so corrupted upstream log-prob data degrades scores instead of
// crashing the optimizer.
func SafeFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0.0
		}
		return f
	default:
		return 0.0
	}
}

// SafeFloats converts a raw decoded array into a float slice, mapping every
// non-numeric entry to zero. Wire payloads from logprob endpoints routinely
// carry nulls for the first token.
func SafeFloats(values []any) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = SafeFloat(v)
	}
	return out
}

// SafeSum totals a raw decoded array with non-numeric entries counting zero.
func SafeSum(values []any) float64 {
	s := 0.0
	for _, v := range values {
		s += SafeFloat(v)
	}
	return s
}
