// Package wcrp fits a weighted Chinese restaurant process mixture of
// Bayesian knowledge tracing models to student practice data.
//
// The model jointly clusters practice items into latent skills and
// estimates per-skill two-state knowledge tracing parameters, biasing the
// clustering toward expert-provided skill labels by a mixing weight beta.
// Inference is a single collapsed Gibbs chain: slice sampling for the
// continuous parameters and hyperparameters, and an auxiliary-variable
// (Neal Algorithm 8) sweep for the item-to-skill partition.
//
// Basic usage:
//
//	chain, err := wcrp.NewChain(wcrp.Config{
//	    TrainStudents: train,
//	    Recalls:       recalls,
//	    Items:         items,
//	    ExpertLabels:  labels,
//	    NumStudents:   numStudents,
//	    NumItems:      numItems,
//	    Beta:          0.5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	chain.Run(200, 100, true, true)
//	p, err := chain.EstimatedRecallProb(student, trial)
//
// A Chain is a freestanding unit: independent chains (for example one per
// train/test replication) share no mutable state and may run concurrently.
package wcrp
