// Package llms contains the external collaborators the optimizer is
// parameterized over: a completion adapter that returns token log-probs and
// reflection adapters that rewrite prompts from failure traces.
package llms

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/theraloop/theraloop-go/pkg/errors"
	"github.com/theraloop/theraloop-go/pkg/gepa"
	"github.com/theraloop/theraloop-go/pkg/logging"
)

const (
	// TogetherBaseURL is the OpenAI-compatible endpoint of the Together API.
	TogetherBaseURL = "https://api.together.xyz/v1"

	// TogetherDefaultModel is used when no model is configured.
	TogetherDefaultModel = "meta-llama/Llama-3.2-3B-Instruct-Turbo"

	defaultMaxTokens   = 128
	defaultTemperature = 0.2

	maxRetries = 3
	baseDelay  = time.Second
)

// TogetherConfig configures the completion adapter.
type TogetherConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // defaults to TogetherBaseURL
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// TogetherLM is a chat-completion client against any OpenAI-compatible
// endpoint that supports per-token log-probabilities. It implements the
// optimizer's call side.
type TogetherLM struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	sleep       func(time.Duration) // swapped out in tests
}

// NewTogetherLM creates the adapter. The API key is required; everything else
// has defaults.
func NewTogetherLM(cfg TogetherConfig) (*TogetherLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.InvalidInput, "together: API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = TogetherBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = TogetherDefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	return &TogetherLM{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		sleep:       time.Sleep,
	}, nil
}

// Complete sends one prompt and returns the generated text with its per-token
// log-probabilities. Rate-limit responses are retried with exponential backoff
// and jitter; every other failure surfaces immediately.
func (t *TogetherLM) Complete(ctx context.Context, prompt string) (*gepa.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   t.maxTokens,
		Temperature: t.temperature,
		LogProbs:    true,
		TopLogProbs: 1,
	}

	logger := logging.GetLogger()
	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err = t.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		if !isRateLimited(err) || attempt == maxRetries {
			return nil, errors.Wrap(err, errors.LLMGenerationFailed, "together: completion request failed")
		}
		delay := baseDelay*time.Duration(1<<attempt) + time.Duration(rand.Int63n(int64(time.Second)))
		logger.Warn(ctx, "Rate limited, retrying in %s (attempt %d/%d)", delay, attempt+1, maxRetries)
		t.sleep(delay)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New(errors.InvalidResponse, "together: response contained no choices")
	}
	choice := resp.Choices[0]

	var logprobs []float64
	if choice.LogProbs != nil {
		logprobs = make([]float64, 0, len(choice.LogProbs.Content))
		for _, tok := range choice.LogProbs.Content {
			logprobs = append(logprobs, tok.LogProb)
		}
	}

	return &gepa.Completion{
		Text:          choice.Message.Content,
		TokenLogprobs: logprobs,
	}, nil
}

// CallFunc adapts the client to the optimizer's call interface, rendering the
// candidate prompt and the example query into one task message.
func (t *TogetherLM) CallFunc() gepa.CallFunc {
	return func(ctx context.Context, prompt string, ex gepa.Example) (*gepa.Completion, error) {
		return t.Complete(ctx, RenderTask(prompt, ex))
	}
}

// RenderTask combines a candidate prompt with one evaluation query.
func RenderTask(prompt string, ex gepa.Example) string {
	return fmt.Sprintf("%s\n\nTask:\n%s\nReturn only the answer.", prompt, ex.Query)
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
