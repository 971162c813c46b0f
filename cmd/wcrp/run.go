package main

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sky-flux/wcrp"
	"github.com/sky-flux/wcrp/dataset"
	"github.com/sky-flux/wcrp/randx"
)

// chainResult pairs a finished chain with the students it was asked to
// predict for.
type chainResult struct {
	replication int
	fold        int
	test        []int
	chain       *wcrp.Chain
}

func run(ctx context.Context, opts options) error {
	data, err := dataset.Load(opts.Datafile)
	if err != nil {
		return err
	}
	folds, err := dataset.LoadFolds(opts.Foldfile, data.NumStudents)
	if err != nil {
		return err
	}

	logger.Info("loaded dataset",
		zap.Int("students", data.NumStudents),
		zap.Int("items", data.NumItems),
		zap.Int("expert_skills", data.NumExpertSkills),
		zap.Int("replications", len(folds.Assignment)),
		zap.Int("folds", folds.NumFolds))

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	limit := opts.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]chainResult, len(folds.Assignment)*folds.NumFolds)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for rep := range folds.Assignment {
		for fold := 0; fold < folds.NumFolds; fold++ {
			rep, fold := rep, fold
			idx := rep*folds.NumFolds + fold
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := runChain(data, folds, opts, rep, fold, seed+int64(idx))
				if err != nil {
					return err
				}
				results[idx] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writePredictions(opts.Outfile, data, results); err != nil {
		return err
	}
	logger.Info("wrote predictions", zap.String("path", opts.Outfile))

	if opts.DumpSkills {
		path := opts.Outfile + ".skills"
		if err := writeSkills(path, results); err != nil {
			return err
		}
		logger.Info("wrote skill assignments", zap.String("path", path))
	}
	return nil
}

// runChain fits one MCMC chain on the students outside the test fold and
// returns it together with the students held out for prediction.
func runChain(data *dataset.Data, folds *dataset.Folds, opts options, rep, fold int, seed int64) (chainResult, error) {
	train, test := folds.Split(rep, fold)
	log := logger.With(zap.Int("replication", rep), zap.Int("fold", fold))
	log.Info("starting chain",
		zap.Int("train_students", len(train)),
		zap.Int("test_students", len(test)),
		zap.Int64("seed", seed))

	chain, err := wcrp.NewChain(wcrp.Config{
		TrainStudents:  train,
		Recalls:        data.Recalls,
		Items:          data.Items,
		ExpertLabels:   data.ExpertLabels,
		Beta:           opts.InitBeta,
		InitAlphaPrime: opts.FixedAlphaPrime,
		AuxiliaryDraws: opts.Subsamples,
		Source:         randx.New(seed),
		Progress: func(it wcrp.Iteration) {
			fields := []zap.Field{
				zap.Int("iter", it.Iter),
				zap.Float64("beta", it.Beta),
				zap.Int("skills", it.ActiveSkills),
				zap.Float64("train_xent", crossEntropy(it.TrainLL, it.TrainTrials)),
			}
			if it.HeldoutTrials > 0 {
				fields = append(fields, zap.Float64("heldout_xent", crossEntropy(it.HeldoutLL, it.HeldoutTrials)))
			}
			log.Debug("sweep", fields...)
		},
	})
	if err != nil {
		return chainResult{}, err
	}
	if n := chain.ItemsWithoutTrainingData(); n > 0 {
		log.Warn("items never practiced by a training student; their predictions fall back to the prior",
			zap.Int("items", n))
	}

	inferAlphaPrime := opts.FixedAlphaPrime <= 0
	if err := chain.Run(opts.Iterations, opts.Burn, opts.InferBeta, inferAlphaPrime); err != nil {
		return chainResult{}, err
	}
	log.Info("chain finished", zap.Int("samples", chain.NumSamples()))
	return chainResult{replication: rep, fold: fold, test: test, chain: chain}, nil
}

// crossEntropy converts a total log-likelihood into mean negative
// log-likelihood per trial, the quantity usually reported for these models.
func crossEntropy(ll float64, trials int) float64 {
	if trials == 0 {
		return 0
	}
	return -ll / float64(trials)
}
