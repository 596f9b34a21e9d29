// Package theraloop provides GEPA, an evolutionary, multi-objective prompt
// optimization engine. It searches a space of natural-language prompt strings
// for one that jointly maximizes exact-match correctness, grounding against
// source text, and model confidence derived from token log-probabilities,
// using reflection-guided mutation rather than random search.
//
// Key Components:
//
//   - gepa: The core engine. Population management with lazy scoring, Pareto
//     dominance selection, dedup and capacity control, and a multi-generation
//     search loop with a deterministic lexicographic champion tie-break. The
//     model call and the mutation step are injected as narrow function values,
//     so the engine never talks to a model itself.
//
//   - metrics: Pure scoring primitives. Exact match on trimmed strings,
//     lexical grounding recall against source text, and a log-probability
//     confidence proxy with an optional secondary-scorer bonus.
//
//   - llms: The external collaborators. A Together (OpenAI-compatible)
//     completion adapter that returns per-token log-probabilities, an
//     Anthropic-backed reflector that rewrites prompts from failure traces,
//     and a deterministic rule-based reflector.
//
//   - monitor: A Prometheus implementation of the per-generation observer
//     hook, publishing the Pareto parents' objective scores.
//
//   - config, datasets: YAML run configuration with validation, and a JSONL
//     evaluation-set loader.
//
// The cmd/gepa-cli binary ties these together: it loads a run configuration
// and an evaluation set, drives the generation loop, and writes the champion
// prompt to a file.
package theraloop
