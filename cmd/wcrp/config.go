package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// options holds one run's settings, settable from a YAML config file and
// overridable by command-line flags.
type options struct {
	Datafile string `yaml:"datafile"`
	Foldfile string `yaml:"foldfile"`
	Outfile  string `yaml:"outfile"`

	InitBeta        float64 `yaml:"init_beta"`
	InferBeta       bool    `yaml:"infer_beta"`
	FixedAlphaPrime float64 `yaml:"fixed_alpha_prime"` // 0: infer alpha'

	Iterations int `yaml:"iterations"`
	Burn       int `yaml:"burn"`
	Subsamples int `yaml:"subsamples"`

	DumpSkills bool  `yaml:"dump_skills"`
	Seed       int64 `yaml:"seed"`     // 0: time seeded
	Parallel   int   `yaml:"parallel"` // 0: GOMAXPROCS
}

func defaultOptions() options {
	return options{
		Iterations: 200,
		Burn:       100,
		Subsamples: 2000,
	}
}

// loadOptions reads a YAML config file over the defaults.
func loadOptions(path string) (options, error) {
	opts := defaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("config: %s: %w", path, err)
	}
	return opts, nil
}

// validate checks the cross-field constraints the sampler cannot.
func (o *options) validate() error {
	if o.Datafile == "" {
		return fmt.Errorf("config: datafile is required")
	}
	if o.Foldfile == "" {
		return fmt.Errorf("config: foldfile is required")
	}
	if o.Outfile == "" {
		return fmt.Errorf("config: outfile is required")
	}
	if o.InitBeta < 0 || o.InitBeta > 1 {
		return fmt.Errorf("config: init_beta %v out of range [0, 1]", o.InitBeta)
	}
	if o.FixedAlphaPrime < 0 {
		return fmt.Errorf("config: fixed_alpha_prime %v must be non-negative", o.FixedAlphaPrime)
	}
	if o.Iterations <= 0 || o.Burn < 0 || o.Burn >= o.Iterations {
		return fmt.Errorf("config: need iterations > burn >= 0, got %d and %d", o.Iterations, o.Burn)
	}
	if o.Subsamples <= 0 {
		return fmt.Errorf("config: subsamples must be positive")
	}
	return nil
}
