// Command wcrp fits the WCRP knowledge tracing mixture model to a practice
// dataset, running one MCMC chain per (replication, test fold) pair and
// writing posterior-mean recall predictions for every trial.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	verbose    bool
	flagOpts   options

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wcrp",
	Short: "Bayesian nonparametric clustering of items into knowledge tracing skills",
	Long: `wcrp jointly infers a clustering of practice items into latent skills and
per-skill knowledge tracing parameters, blending expert-provided skill
labels with data-driven clustering through the mixing weight beta.

The dataset file is whitespace-delimited with one row per trial:
student id, item id, expert skill id, correctness (all ids 0-based and
contiguous). The fold file has one row per replication with one fold
index per student; a chain is run for every (replication, fold) pair.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := resolveOptions(cmd)
		if err != nil {
			return err
		}
		return run(cmd.Context(), opts)
	},
}

// resolveOptions layers explicitly set flags over the YAML config (if any)
// over the built-in defaults.
func resolveOptions(cmd *cobra.Command) (options, error) {
	opts := defaultOptions()
	if configPath != "" {
		var err error
		opts, err = loadOptions(configPath)
		if err != nil {
			return opts, err
		}
	}

	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("datafile", func() { opts.Datafile = flagOpts.Datafile })
	set("foldfile", func() { opts.Foldfile = flagOpts.Foldfile })
	set("outfile", func() { opts.Outfile = flagOpts.Outfile })
	set("init-beta", func() { opts.InitBeta = flagOpts.InitBeta })
	set("infer-beta", func() { opts.InferBeta = flagOpts.InferBeta })
	set("fixed-alpha-prime", func() { opts.FixedAlphaPrime = flagOpts.FixedAlphaPrime })
	set("iterations", func() { opts.Iterations = flagOpts.Iterations })
	set("burn", func() { opts.Burn = flagOpts.Burn })
	set("subsamples", func() { opts.Subsamples = flagOpts.Subsamples })
	set("dump-skills", func() { opts.DumpSkills = flagOpts.DumpSkills })
	set("seed", func() { opts.Seed = flagOpts.Seed })
	set("parallel", func() { opts.Parallel = flagOpts.Parallel })

	if err := opts.validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func init() {
	defaults := defaultOptions()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file with run settings")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().StringVar(&flagOpts.Datafile, "datafile", "", "train the model on the given data file")
	rootCmd.Flags().StringVar(&flagOpts.Foldfile, "foldfile", "", "file with the training / test splits")
	rootCmd.Flags().StringVar(&flagOpts.Outfile, "outfile", "", "put predicted recall probabilities in this file")
	rootCmd.Flags().Float64Var(&flagOpts.InitBeta, "init-beta", 0, "initial value of the mixing weight beta")
	rootCmd.Flags().BoolVar(&flagOpts.InferBeta, "infer-beta", false, "infer the value of beta")
	rootCmd.Flags().Float64Var(&flagOpts.FixedAlphaPrime, "fixed-alpha-prime", 0, "fixed value of alpha' (default: infer it)")
	rootCmd.Flags().IntVar(&flagOpts.Iterations, "iterations", defaults.Iterations, "number of MCMC iterations to run")
	rootCmd.Flags().IntVar(&flagOpts.Burn, "burn", defaults.Burn, "number of iterations to discard as burn-in")
	rootCmd.Flags().IntVar(&flagOpts.Subsamples, "subsamples", defaults.Subsamples, "auxiliary prior draws approximating the new-skill marginal likelihood")
	rootCmd.Flags().BoolVar(&flagOpts.DumpSkills, "dump-skills", false, "also save the sampled skill assignments")
	rootCmd.Flags().Int64Var(&flagOpts.Seed, "seed", 0, "random seed (default: time)")
	rootCmd.Flags().IntVar(&flagOpts.Parallel, "parallel", 0, "max chains to run concurrently (default: GOMAXPROCS)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
