package llms

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/theraloop/theraloop-go/pkg/errors"
	"github.com/theraloop/theraloop-go/pkg/gepa"
)

// AnthropicDefaultModel is used when no reflection model is configured.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

const reflectionMaxTokens = 1024

// AnthropicReflector rewrites prompts with Claude. It summarizes the failing
// trace cases into a critique request and parses the numbered rewrites out of
// the response.
type AnthropicReflector struct {
	client   anthropic.Client
	model    string
	rewrites int
}

// NewAnthropicReflector creates a reflector requesting up to rewrites
// mutations per parent.
func NewAnthropicReflector(apiKey, model string, rewrites int, opts ...option.RequestOption) (*AnthropicReflector, error) {
	if apiKey == "" {
		return nil, errors.New(errors.InvalidInput, "anthropic: API key is required")
	}
	if model == "" {
		model = AnthropicDefaultModel
	}
	if rewrites < 1 {
		rewrites = 2
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicReflector{
		client:   anthropic.NewClient(clientOpts...),
		model:    model,
		rewrites: rewrites,
	}, nil
}

// ReflectFunc adapts the reflector to the optimizer's mutation interface.
func (r *AnthropicReflector) ReflectFunc() gepa.ReflectFunc {
	return func(ctx context.Context, prompt string, trace *gepa.Trace) ([]string, error) {
		message, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(r.model),
			MaxTokens: reflectionMaxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(buildReflectionPrompt(prompt, trace, r.rewrites))),
			},
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.LLMGenerationFailed, "anthropic: reflection request failed")
		}

		var text strings.Builder
		for _, block := range message.Content {
			switch content := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(content.Text)
			}
		}
		return ParseRewrites(text.String(), r.rewrites), nil
	}
}

// buildReflectionPrompt turns the failing trace cases into a critique request.
// Cases where the output already matches gold are omitted; the model should
// fix what is broken, not churn what works.
func buildReflectionPrompt(prompt string, trace *gepa.Trace, rewrites int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are improving an instruction prompt for a question-answering model.\n\nCurrent prompt:\n%s\n", prompt)

	if trace != nil {
		var failures []gepa.TraceCase
		for _, c := range trace.Cases {
			gold := strings.TrimSpace(c.Example.Gold)
			if gold != "" && gold != strings.TrimSpace(c.Output.Text) {
				failures = append(failures, c)
			}
		}
		if len(failures) > 0 {
			b.WriteString("\nFailing cases:\n")
			for _, c := range failures {
				fmt.Fprintf(&b, "- query: %s\n  expected: %s\n  got: %s\n",
					c.Example.Query, c.Example.Gold, strings.TrimSpace(c.Output.Text))
			}
		}
	}

	fmt.Fprintf(&b, "\nWrite %d improved versions of the prompt that fix the failing cases while keeping the successes. "+
		"Each version must be a complete, standalone prompt. "+
		"Respond with a numbered list and nothing else.\n", rewrites)
	return b.String()
}

// ParseRewrites extracts up to limit numbered list items from a model
// response. Items may span multiple lines; a new item starts at a line
// beginning with "N." or "N)".
func ParseRewrites(response string, limit int) []string {
	var rewrites []string
	var current []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text != "" {
			rewrites = append(rewrites, text)
		}
		current = nil
	}

	for _, line := range strings.Split(response, "\n") {
		if rest, ok := stripListMarker(line); ok {
			flush()
			current = []string{rest}
			continue
		}
		if current != nil {
			current = append(current, line)
		}
	}
	flush()

	if len(rewrites) > limit {
		rewrites = rewrites[:limit]
	}
	return rewrites
}

// stripListMarker reports whether the line opens a numbered list item and
// returns the line with the marker removed.
func stripListMarker(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(trimmed) {
		return "", false
	}
	if trimmed[i] != '.' && trimmed[i] != ')' {
		return "", false
	}
	return strings.TrimSpace(trimmed[i+1:]), true
}
