package llms

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/theraloop/theraloop-go/pkg/gepa"
)

// RuleReflector is a deterministic, model-free mutation source: it scans the
// trace for cases where the generated text missed the gold answer, turns each
// miss into a formatting rule, and appends the deduplicated rules to the
// parent prompt as a Refinements block. One mutation per parent.
func RuleReflector() gepa.ReflectFunc {
	return func(ctx context.Context, prompt string, trace *gepa.Trace) ([]string, error) {
		var failures []string
		if trace != nil {
			for _, c := range trace.Cases {
				got := strings.TrimSpace(c.Output.Text)
				gold := strings.TrimSpace(c.Example.Gold)
				if gold != "" && gold != got {
					failures = append(failures, fmt.Sprintf("- Prefer exact string: `%s` when unambiguous.", gold))
				}
			}
		}

		sort.Strings(failures)
		failures = dedupeStrings(failures)
		rules := strings.Join(failures, "\n")
		if rules == "" {
			rules = "- Keep successes; tighten formatting."
		}

		return []string{fmt.Sprintf("%s\n\nRefinements:\n%s\n", prompt, rules)}, nil
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
