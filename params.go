package wcrp

import "github.com/sky-flux/wcrp/randx"

// Parameter support edge. The knowledge tracing recursions break down if any
// parameter reaches exactly 0 or 1, so the support is [tol, 1-tol]. The same
// tolerance bounds the acceptable positive overshoot of a log-likelihood.
const (
	tol         = 1e-6
	oneMinusTol = 1 - tol
)

// skillParams holds the knowledge tracing parameters for one skill.
//
//	prior      P(student already knows the skill before any practice)
//	learn      P(unknown -> known after one practice opportunity)
//	recall     P(correct response | skill known)
//	guessRatio guess probability as a fraction of recall, so that
//	           P(correct | unknown) = recall * guessRatio <= recall
type skillParams struct {
	prior      float64
	learn      float64
	recall     float64
	guessRatio float64
}

// drawParamsPrior draws each parameter uniformly on [tol, 1-tol].
func drawParamsPrior(rng randx.Source) skillParams {
	u := func() float64 { return tol + (oneMinusTol-tol)*rng.Uniform01() }
	return skillParams{
		prior:      u(),
		learn:      u(),
		recall:     u(),
		guessRatio: u(),
	}
}
