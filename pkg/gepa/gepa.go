package gepa

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/theraloop/theraloop-go/pkg/errors"
	"github.com/theraloop/theraloop-go/pkg/logging"
	"github.com/theraloop/theraloop-go/pkg/metrics"
)

// Config holds the evolutionary parameters, fixed at construction. Values
// below the documented minimums are clamped rather than rejected so the
// optimizer stays total for any configuration.
type Config struct {
	// PopulationSize is the nominal population size. Minimum 1, default 8.
	PopulationSize int `json:"population_size"`
	// Children is the per-parent mutation budget per generation. Minimum 0,
	// default 2. Zero disables reflection entirely.
	Children int `json:"children"`
	// Generations is the number of search generations. Minimum 1, default 3.
	Generations int `json:"generations"`
	// CapPool bounds the pool after a reseed. Default 2*PopulationSize; values
	// below PopulationSize are raised to the default.
	CapPool int `json:"cap_pool"`
	// Concurrency bounds the number of in-flight model calls while scoring a
	// single prompt. Minimum and default 1 (strictly sequential).
	Concurrency int `json:"concurrency"`

	// SecondaryScorer, when set, feeds a small bonus into the confidence
	// objective. Optional.
	SecondaryScorer SecondaryScorer `json:"-"`
}

// DefaultConfig returns the configuration the original pipeline shipped with.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 8,
		Children:       2,
		Generations:    3,
		Concurrency:    1,
	}
}

func (c Config) normalized() Config {
	if c.PopulationSize < 1 {
		c.PopulationSize = 1
	}
	if c.Children < 0 {
		c.Children = 0
	}
	if c.Generations < 1 {
		c.Generations = 1
	}
	if c.CapPool < c.PopulationSize {
		c.CapPool = 2 * c.PopulationSize
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	return c
}

// GEPA drives the generation loop over a private, single-run pool. Construct
// one per optimization run; the pool is discarded once the champion returns.
type GEPA struct {
	config    Config
	evalSet   []Example
	callFn    CallFunc
	reflectFn ReflectFunc
	observer  Observer

	pool []*Candidate
}

// New creates an optimizer over a fixed evaluation set. callFn is required.
// reflectFn may be nil only when Config.Children is 0, since a multi-generation
// search without a mutation source cannot make progress.
func New(cfg Config, evalSet []Example, callFn CallFunc, reflectFn ReflectFunc) (*GEPA, error) {
	if callFn == nil {
		return nil, errors.New(errors.InvalidInput, "gepa: call function is required")
	}
	cfg = cfg.normalized()
	if reflectFn == nil && cfg.Children > 0 {
		return nil, errors.New(errors.InvalidInput, "gepa: reflect function is required when children > 0")
	}
	return &GEPA{
		config:    cfg,
		evalSet:   evalSet,
		callFn:    callFn,
		reflectFn: reflectFn,
	}, nil
}

// WithObserver installs a per-generation telemetry hook. The hook is isolated
// from the search: a panicking observer is recovered and ignored.
func (g *GEPA) WithObserver(obs Observer) *GEPA {
	g.observer = obs
	return g
}

// Run executes the full generation loop from a seed prompt and returns the
// champion prompt. Errors from the injected call or reflect functions abort
// the run unretried. Cancellation is honored at generation boundaries only;
// a partially scored pool is a valid state, a half-evaluated candidate is not.
func (g *GEPA) Run(ctx context.Context, seedPrompt string) (string, error) {
	logger := logging.GetLogger()
	g.pool = []*Candidate{newCandidate(seedPrompt)}

	for gen := 0; gen < g.config.Generations; gen++ {
		if err := errors.CheckContext(ctx, "gepa generation"); err != nil {
			return "", err
		}

		if err := g.scorePending(ctx); err != nil {
			return "", err
		}

		if err := errors.CheckContext(ctx, "gepa selection"); err != nil {
			return "", err
		}

		scores := make([]Score, len(g.pool))
		for i, c := range g.pool {
			scores[i] = *c.Score
		}
		frontIdx := ParetoFront(scores)
		parents := make([]*Candidate, len(frontIdx))
		for i, idx := range frontIdx {
			parents[i] = g.pool[idx]
		}

		logger.Info(ctx, "Generation %d: pool=%d front=%d", gen, len(g.pool), len(parents))
		g.notifyObserver(gen, parents)

		if gen < g.config.Generations-1 && g.config.Children > 0 {
			children, err := g.reflectChildren(ctx, parents)
			if err != nil {
				return "", err
			}
			g.pool = reseed(parents, children, g.config.CapPool)
		} else {
			// Final generation (or no mutation budget): collapse to the front.
			g.pool = dedupeAndCap(parents, g.config.CapPool)
		}
	}

	// Safety net: no candidate may reach champion selection unscored.
	if err := g.scorePending(ctx); err != nil {
		return "", err
	}

	champion := g.pool[0]
	for _, c := range g.pool[1:] {
		if champion.Score.Less(*c.Score) {
			champion = c
		}
	}
	logger.Info(ctx, "Champion selected: exact=%.3f grounding=%.3f confidence=%.3f",
		champion.Score.Exact, champion.Score.Grounding, champion.Score.Confidence)
	return champion.Prompt, nil
}

// scorePending evaluates every unscored candidate in the pool. Already-scored
// entries are never rescored.
func (g *GEPA) scorePending(ctx context.Context) error {
	for _, c := range g.pool {
		if c.Score != nil {
			continue
		}
		score, trace, err := g.scorePrompt(ctx, c.Prompt)
		if err != nil {
			return err
		}
		c.Score, c.Trace = score, trace
	}
	return nil
}

// scorePrompt evaluates one prompt against the whole evaluation set and
// aggregates the three objectives by arithmetic mean. The per-example calls
// are independent and commutative under the mean, so they run under a bounded
// worker pool; results land in indexed slots to keep the trace in example
// order regardless of completion order.
func (g *GEPA) scorePrompt(ctx context.Context, prompt string) (*Score, *Trace, error) {
	cases := make([]TraceCase, len(g.evalSet))

	p := pool.New().WithMaxGoroutines(g.config.Concurrency)
	var mu sync.Mutex
	var callErr error

	for i, ex := range g.evalSet {
		p.Go(func() {
			mu.Lock()
			failed := callErr != nil
			mu.Unlock()
			if failed {
				return
			}
			out, err := g.callFn(ctx, prompt, ex)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if callErr == nil {
					callErr = errors.Wrap(err, errors.LLMGenerationFailed, "gepa: model call failed")
				}
				return
			}
			cases[i] = TraceCase{Example: ex, Output: *out}
		})
	}
	p.Wait()
	if callErr != nil {
		return nil, nil, callErr
	}

	var sum Score
	for i, ex := range g.evalSet {
		out := cases[i].Output
		sum.Exact += metrics.ExactMatch(out.Text, ex.Gold)
		sum.Grounding += metrics.GroundingScore(out.Text, ex.Sources)
		sum.Confidence += metrics.Confidence(out.Text, out.TokenLogprobs, ex.Gold, ex.Negatives, metrics.SecondaryScorer(g.config.SecondaryScorer))
	}
	n := float64(max(1, len(g.evalSet)))
	score := &Score{
		Exact:      sum.Exact / n,
		Grounding:  sum.Grounding / n,
		Confidence: sum.Confidence / n,
	}
	return score, &Trace{Cases: cases}, nil
}

// reflectChildren asks the reflection function for mutations of each parent
// and wraps up to Children of them as new unscored candidates. An empty or nil
// mutation list is acceptable degeneration, not a fault.
func (g *GEPA) reflectChildren(ctx context.Context, parents []*Candidate) ([]*Candidate, error) {
	var children []*Candidate
	for _, parent := range parents {
		muts, err := g.reflectFn(ctx, parent.Prompt, parent.Trace)
		if err != nil {
			return nil, errors.Wrap(err, errors.LLMGenerationFailed, "gepa: reflection failed")
		}
		for _, m := range muts[:min(len(muts), g.config.Children)] {
			children = append(children, newCandidate(m))
		}
	}
	return children, nil
}

func (g *GEPA) notifyObserver(gen int, parents []*Candidate) {
	if g.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.GetLogger().Warn(context.Background(), "generation observer panicked: %v", r)
		}
	}()
	g.observer(gen, parents)
}
