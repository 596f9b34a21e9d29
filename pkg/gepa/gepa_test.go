package gepa

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theraloop/theraloop-go/pkg/errors"
)

// fixedCall returns the same completion for every prompt and example.
func fixedCall(text string, logprobs ...float64) CallFunc {
	return func(ctx context.Context, prompt string, ex Example) (*Completion, error) {
		return &Completion{Text: text, TokenLogprobs: logprobs}, nil
	}
}

// mappedCall returns a canned completion per prompt, so tests can engineer
// exact score tuples for specific candidates.
func mappedCall(byPrompt map[string]Completion) CallFunc {
	return func(ctx context.Context, prompt string, ex Example) (*Completion, error) {
		out := byPrompt[prompt]
		return &out, nil
	}
}

func noReflect(ctx context.Context, prompt string, trace *Trace) ([]string, error) {
	return nil, nil
}

func TestNewRequiresCallFunc(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil, noReflect)
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}

func TestNewRequiresReflectFuncWhenChildrenPositive(t *testing.T) {
	_, err := New(DefaultConfig(), nil, fixedCall("x"), nil)
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.Children = 0
	_, err = New(cfg, nil, fixedCall("x"), nil)
	require.NoError(t, err)
}

func TestConfigNormalization(t *testing.T) {
	cfg := Config{PopulationSize: -3, Children: -1, Generations: 0, CapPool: 1, Concurrency: 0}.normalized()
	assert.Equal(t, 1, cfg.PopulationSize)
	assert.Equal(t, 0, cfg.Children)
	assert.Equal(t, 1, cfg.Generations)
	assert.Equal(t, 2, cfg.CapPool)
	assert.Equal(t, 1, cfg.Concurrency)
}

func TestEndToEndChampion(t *testing.T) {
	evalSet := []Example{{Query: "2+2?", Gold: "4"}}
	cfg := DefaultConfig()
	cfg.Generations = 2
	cfg.Children = 2

	g, err := New(cfg, evalSet, fixedCall("4", -0.1), func(ctx context.Context, prompt string, trace *Trace) ([]string, error) {
		return []string{}, nil
	})
	require.NoError(t, err)

	champ, err := g.Run(context.Background(), "Answer exactly.")
	require.NoError(t, err)
	assert.Equal(t, "Answer exactly.", champ)

	require.Len(t, g.pool, 1)
	require.NotNil(t, g.pool[0].Score)
	assert.Equal(t, Score{Exact: 1.0, Grounding: 0.0, Confidence: -0.1}, *g.pool[0].Score)
}

func TestChampionIsLexicographicMax(t *testing.T) {
	evalSet := []Example{{Query: "q", Gold: "4", Sources: "alpha beta"}}
	byPrompt := map[string]Completion{
		"seed":     {Text: "nothing", TokenLogprobs: []float64{-5}},   // (0, 0, -5)
		"exactly":  {Text: "4", TokenLogprobs: []float64{-1}},         // (1, 0, -1)
		"grounded": {Text: "alpha beta", TokenLogprobs: []float64{0}}, // (0, 1, 0)
	}
	reflect := func(ctx context.Context, prompt string, trace *Trace) ([]string, error) {
		if prompt == "seed" {
			return []string{"grounded", "exactly"}, nil
		}
		return nil, nil
	}

	cfg := DefaultConfig()
	cfg.Generations = 2
	g, err := New(cfg, evalSet, mappedCall(byPrompt), reflect)
	require.NoError(t, err)

	champ, err := g.Run(context.Background(), "seed")
	require.NoError(t, err)
	assert.Equal(t, "exactly", champ, "exact match must win the lexicographic tie-break")
}

func TestDegenerateRunReturnsSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generations = 1
	cfg.Children = 0

	g, err := New(cfg, []Example{{Query: "q", Gold: "a"}}, fixedCall("a", -0.5), nil)
	require.NoError(t, err)

	champ, err := g.Run(context.Background(), "seed prompt")
	require.NoError(t, err)
	assert.Equal(t, "seed prompt", champ)
	assert.Len(t, g.pool, 1, "pool must never grow beyond the seed")
}

func TestScoringIsDeterministic(t *testing.T) {
	evalSet := []Example{
		{Query: "a", Gold: "x", Sources: "red green blue"},
		{Query: "b", Gold: "y"},
	}
	g, err := New(DefaultConfig(), evalSet, fixedCall("x contains red and blue", -0.2, -0.3), noReflect)
	require.NoError(t, err)

	first, _, err := g.scorePrompt(context.Background(), "p")
	require.NoError(t, err)
	second, _, err := g.scorePrompt(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, *first, *second)
}

func TestScoringEmptyEvalSet(t *testing.T) {
	g, err := New(DefaultConfig(), nil, fixedCall("x"), noReflect)
	require.NoError(t, err)

	score, trace, err := g.scorePrompt(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, Score{}, *score)
	assert.Empty(t, trace.Cases)
}

func TestScoringConcurrentMatchesSequential(t *testing.T) {
	evalSet := []Example{
		{Query: "a", Gold: "out-a", Sources: "one two"},
		{Query: "b", Gold: "out-b", Sources: "three"},
		{Query: "c", Gold: "out-c"},
		{Query: "d", Gold: "out-d", Sources: "one three"},
	}
	call := func(ctx context.Context, prompt string, ex Example) (*Completion, error) {
		return &Completion{Text: "out-" + ex.Query + " one", TokenLogprobs: []float64{-0.1}}, nil
	}

	seq, err := New(DefaultConfig(), evalSet, call, noReflect)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Concurrency = 4
	par, err := New(cfg, evalSet, call, noReflect)
	require.NoError(t, err)

	sScore, sTrace, err := seq.scorePrompt(context.Background(), "p")
	require.NoError(t, err)
	pScore, pTrace, err := par.scorePrompt(context.Background(), "p")
	require.NoError(t, err)

	assert.Equal(t, *sScore, *pScore)
	require.Len(t, pTrace.Cases, len(evalSet))
	for i, ex := range evalSet {
		assert.Equal(t, ex, pTrace.Cases[i].Example, "trace must preserve example order")
		assert.Equal(t, sTrace.Cases[i].Output, pTrace.Cases[i].Output)
	}
}

func TestParentsAreNotRescored(t *testing.T) {
	var mu sync.Mutex
	callsPerPrompt := map[string]int{}
	call := func(ctx context.Context, prompt string, ex Example) (*Completion, error) {
		mu.Lock()
		callsPerPrompt[prompt]++
		mu.Unlock()
		return &Completion{Text: "x", TokenLogprobs: []float64{-1}}, nil
	}

	cfg := DefaultConfig()
	cfg.Generations = 4
	g, err := New(cfg, []Example{{Query: "q", Gold: "x"}}, call, noReflect)
	require.NoError(t, err)

	_, err = g.Run(context.Background(), "seed")
	require.NoError(t, err)
	assert.Equal(t, 1, callsPerPrompt["seed"], "a surviving parent must be evaluated exactly once")
}

func TestCallErrorAbortsRun(t *testing.T) {
	boom := errors.New(errors.Unknown, "upstream exploded")
	call := func(ctx context.Context, prompt string, ex Example) (*Completion, error) {
		return nil, boom
	}
	g, err := New(DefaultConfig(), []Example{{Query: "q"}}, call, noReflect)
	require.NoError(t, err)

	_, err = g.Run(context.Background(), "seed")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, errors.LLMGenerationFailed, errors.CodeOf(err))
}

func TestReflectErrorAbortsRun(t *testing.T) {
	boom := errors.New(errors.Unknown, "reflection exploded")
	reflect := func(ctx context.Context, prompt string, trace *Trace) ([]string, error) {
		return nil, boom
	}
	cfg := DefaultConfig()
	cfg.Generations = 2
	g, err := New(cfg, []Example{{Query: "q"}}, fixedCall("x"), reflect)
	require.NoError(t, err)

	_, err = g.Run(context.Background(), "seed")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestCancellationAtGenerationBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := New(DefaultConfig(), []Example{{Query: "q"}}, fixedCall("x"), noReflect)
	require.NoError(t, err)

	_, err = g.Run(ctx, "seed")
	require.Error(t, err)
	assert.Equal(t, errors.Canceled, errors.CodeOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObserverSeesEveryGeneration(t *testing.T) {
	var generations []int
	var frontSizes []int
	obs := func(gen int, parents []*Candidate) {
		generations = append(generations, gen)
		frontSizes = append(frontSizes, len(parents))
		for _, p := range parents {
			assert.NotNil(t, p.Score, "observer must only ever see scored parents")
		}
	}

	cfg := DefaultConfig()
	cfg.Generations = 3
	g, err := New(cfg, []Example{{Query: "q", Gold: "x"}}, fixedCall("x", -0.1), noReflect)
	require.NoError(t, err)
	g.WithObserver(obs)

	_, err = g.Run(context.Background(), "seed")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, generations)
	assert.Equal(t, []int{1, 1, 1}, frontSizes)
}

func TestPanickingObserverDoesNotAffectSearch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generations = 2
	g, err := New(cfg, []Example{{Query: "2+2?", Gold: "4"}}, fixedCall("4", -0.1), noReflect)
	require.NoError(t, err)
	g.WithObserver(func(gen int, parents []*Candidate) {
		panic("telemetry backend down")
	})

	champ, err := g.Run(context.Background(), "Answer exactly.")
	require.NoError(t, err)
	assert.Equal(t, "Answer exactly.", champ)
}

func TestChildrenBudgetIsEnforced(t *testing.T) {
	reflect := func(ctx context.Context, prompt string, trace *Trace) ([]string, error) {
		return []string{prompt + "+1", prompt + "+2", prompt + "+3", prompt + "+4"}, nil
	}
	call := func(ctx context.Context, prompt string, ex Example) (*Completion, error) {
		return &Completion{Text: prompt}, nil
	}

	cfg := DefaultConfig()
	cfg.Generations = 2
	cfg.Children = 2
	cfg.CapPool = 16
	g, err := New(cfg, []Example{{Query: "q"}}, call, reflect)
	require.NoError(t, err)

	var grew bool
	g.WithObserver(func(gen int, parents []*Candidate) {
		if gen == 1 {
			grew = len(g.pool) <= 3
		}
	})

	_, err = g.Run(context.Background(), "seed")
	require.NoError(t, err)
	assert.True(t, grew, "one parent with a budget of 2 may add at most 2 children")
}
