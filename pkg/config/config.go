// Package config loads and validates run configuration for the optimizer CLI.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/theraloop/theraloop-go/pkg/errors"
	"github.com/theraloop/theraloop-go/pkg/gepa"
)

// RunConfig is the YAML configuration for one optimization run.
type RunConfig struct {
	// SeedPrompt is the generation-0 candidate.
	SeedPrompt string `yaml:"seed_prompt" validate:"required"`
	// EvalSet is the path to a JSONL file of evaluation examples.
	EvalSet string `yaml:"eval_set" validate:"required"`

	Population  int `yaml:"population" validate:"gte=1"`
	Children    int `yaml:"children" validate:"gte=0"`
	Generations int `yaml:"generations" validate:"gte=1"`
	// CapPool defaults to 2*Population when zero.
	CapPool     int `yaml:"cap_pool" validate:"gte=0"`
	Concurrency int `yaml:"concurrency" validate:"gte=1"`

	Model struct {
		Name string `yaml:"name"`
		// BaseURL overrides the Together endpoint, e.g. for a local server.
		BaseURL string `yaml:"base_url"`
		// APIKeyEnv names the environment variable carrying the API key.
		APIKeyEnv string `yaml:"api_key_env"`
		MaxTokens int    `yaml:"max_tokens" validate:"gte=0"`
	} `yaml:"model"`

	Reflection struct {
		// Provider selects the mutation source: "rules" (deterministic,
		// default) or "anthropic".
		Provider  string `yaml:"provider" validate:"omitempty,oneof=rules anthropic"`
		Model     string `yaml:"model"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"reflection"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

func defaults() RunConfig {
	cfg := RunConfig{
		Population:  8,
		Children:    2,
		Generations: 3,
		Concurrency: 1,
		LogLevel:    "info",
	}
	cfg.Model.APIKeyEnv = "TOGETHER_API_KEY"
	cfg.Reflection.Provider = "rules"
	cfg.Reflection.APIKeyEnv = "ANTHROPIC_API_KEY"
	return cfg
}

// Load reads a YAML config file, applies defaults, and validates it.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "config: cannot read file")
	}
	return Parse(data)
}

// Parse decodes YAML config bytes over the defaults and validates the result.
func Parse(data []byte) (*RunConfig, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "config: invalid YAML")
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ValidationFailed, "config: validation failed")
	}
	return &cfg, nil
}

// EngineConfig maps the run configuration onto the optimizer's parameters.
func (c *RunConfig) EngineConfig() gepa.Config {
	return gepa.Config{
		PopulationSize: c.Population,
		Children:       c.Children,
		Generations:    c.Generations,
		CapPool:        c.CapPool,
		Concurrency:    c.Concurrency,
	}
}
