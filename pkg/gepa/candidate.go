// Package gepa implements GEPA, a reflective evolutionary search over prompt
// strings. A population of candidate prompts is scored against a fixed set of
// evaluation examples on three objectives (exact match, grounding, model
// confidence), the Pareto front of non-dominated candidates is selected as the
// parent set, and an external reflection function proposes rewritten prompts
// from each parent's failure trace. The loop repeats for a configured number of
// generations and returns the lexicographically best prompt as champion.
//
// The engine itself never talks to a model. Both the completion call and the
// reflection step are injected as narrow function values, so the optimizer is
// a pure algorithm over caller-supplied capabilities.
package gepa

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/theraloop/theraloop-go/pkg/metrics"
)

// Example is a single evaluation record. Examples are supplied once at
// optimizer construction and shared read-only by every scoring call.
type Example struct {
	Query     string   `json:"query"`
	Gold      string   `json:"gold,omitempty"`
	Sources   string   `json:"sources,omitempty"`
	Negatives []string `json:"negatives,omitempty"`
}

// Completion is the output of one model call: the generated text and the
// log-probability of each generated token.
type Completion struct {
	Text          string    `json:"text"`
	TokenLogprobs []float64 `json:"token_logprobs"`
}

// UnmarshalJSON decodes a completion from wire JSON. Logprob endpoints emit
// null (and occasionally stringly-typed) entries in token_logprobs; those
// decode as zero contribution instead of failing the whole record.
func (c *Completion) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text          string `json:"text"`
		TokenLogprobs []any  `json:"token_logprobs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Text = raw.Text
	c.TokenLogprobs = metrics.SafeFloats(raw.TokenLogprobs)
	return nil
}

// Score holds the three aggregated objectives for a candidate, each averaged
// over the evaluation set.
type Score struct {
	Exact      float64 `json:"exact"`
	Grounding  float64 `json:"grounding"`
	Confidence float64 `json:"confidence"`
}

// Less reports whether s orders strictly before o under the lexicographic
// champion order: exact match first, then grounding, then confidence.
func (s Score) Less(o Score) bool {
	if s.Exact != o.Exact {
		return s.Exact < o.Exact
	}
	if s.Grounding != o.Grounding {
		return s.Grounding < o.Grounding
	}
	return s.Confidence < o.Confidence
}

// TraceCase pairs one evaluation example with the completion the candidate's
// prompt produced for it.
type TraceCase struct {
	Example Example    `json:"ex"`
	Output  Completion `json:"out"`
}

// Trace is the full evaluation record for one candidate, one case per example
// in example order. The engine only ever passes it through to the reflection
// function; it never inspects it.
type Trace struct {
	Cases []TraceCase `json:"cases"`
}

// Candidate is one prompt in the population. Score and Trace are nil until the
// candidate has been evaluated; a nil Score is the only representation of
// "unscored".
type Candidate struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Score  *Score `json:"score,omitempty"`
	Trace  *Trace `json:"-"`
}

func newCandidate(prompt string) *Candidate {
	return &Candidate{ID: uuid.New().String(), Prompt: prompt}
}

// CallFunc renders a prompt against one example and returns the model output.
// Errors are never retried or suppressed by the engine; they abort the run.
type CallFunc func(ctx context.Context, prompt string, ex Example) (*Completion, error)

// ReflectFunc proposes rewritten prompts given a parent prompt and its
// evaluation trace. Returning an empty slice is not an error: it simply yields
// no children for that parent.
type ReflectFunc func(ctx context.Context, prompt string, trace *Trace) ([]string, error)

// Observer is invoked once per generation with the selected Pareto parents.
// It exists purely for external telemetry; panics are recovered and it is
// never consulted for control flow.
type Observer func(generation int, parents []*Candidate)

// SecondaryScorer optionally contributes a small bonus to the confidence
// objective by comparing the generated text against the example's gold answer.
type SecondaryScorer func(pred, gold string) float64
