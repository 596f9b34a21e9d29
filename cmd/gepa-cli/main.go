// gepa-cli runs GEPA prompt optimization from a YAML config: it loads an
// evaluation set, wires the completion and reflection adapters, drives the
// generation loop, and writes the champion prompt to a file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/theraloop/theraloop-go/pkg/config"
	"github.com/theraloop/theraloop-go/pkg/datasets"
	"github.com/theraloop/theraloop-go/pkg/gepa"
	"github.com/theraloop/theraloop-go/pkg/llms"
	"github.com/theraloop/theraloop-go/pkg/logging"
	"github.com/theraloop/theraloop-go/pkg/metrics"
	"github.com/theraloop/theraloop-go/pkg/monitor"
)

var rootCmd = &cobra.Command{
	Use:   "gepa-cli",
	Short: "Evolutionary prompt optimization with Pareto selection",
	Long: `gepa-cli searches a space of natural-language prompts for one that jointly
maximizes exact-match correctness, grounding against source text, and model
confidence. Mutation is reflection-guided: each generation's Pareto parents
are rewritten from their own failure traces.`,
	Version: "0.1.0",
}

func main() {
	rootCmd.AddCommand(newRunCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		outPath     string
		generations int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one optimization and write the champion prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if generations > 0 {
				cfg.Generations = generations
			}

			logging.SetLogger(logging.NewLogger(logging.Config{
				Severity: logging.ParseSeverity(cfg.LogLevel),
				Outputs:  []logging.Output{logging.NewConsoleOutput(true)},
			}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			examples, err := datasets.LoadExamples(cfg.EvalSet)
			if err != nil {
				return err
			}

			lm, err := llms.NewTogetherLM(llms.TogetherConfig{
				APIKey:    os.Getenv(cfg.Model.APIKeyEnv),
				Model:     cfg.Model.Name,
				BaseURL:   cfg.Model.BaseURL,
				MaxTokens: cfg.Model.MaxTokens,
			})
			if err != nil {
				return err
			}

			reflectFn, err := buildReflector(cfg)
			if err != nil {
				return err
			}

			engineCfg := cfg.EngineConfig()
			engineCfg.SecondaryScorer = gepa.SecondaryScorer(metrics.ExactMatch)

			engine, err := gepa.New(engineCfg, examples, lm.CallFunc(), reflectFn)
			if err != nil {
				return err
			}
			engine.WithObserver(monitor.NewGenerationMetrics(prometheus.NewRegistry()).Observer())

			champion, err := engine.Run(ctx, cfg.SeedPrompt)
			if err != nil {
				return err
			}

			if err := os.WriteFile(outPath, []byte(champion), 0o644); err != nil {
				return err
			}
			logging.GetLogger().Info(ctx, "Champion prompt saved to %s", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gepa.yaml", "path to run configuration")
	cmd.Flags().StringVarP(&outPath, "out", "o", "best_prompt.txt", "file the champion prompt is written to")
	cmd.Flags().IntVarP(&generations, "generations", "g", 0, "override the configured generation count")
	return cmd
}

func buildReflector(cfg *config.RunConfig) (gepa.ReflectFunc, error) {
	switch cfg.Reflection.Provider {
	case "anthropic":
		r, err := llms.NewAnthropicReflector(os.Getenv(cfg.Reflection.APIKeyEnv), cfg.Reflection.Model, cfg.Children)
		if err != nil {
			return nil, err
		}
		return r.ReflectFunc(), nil
	default:
		return llms.RuleReflector(), nil
	}
}
