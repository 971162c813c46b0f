package wcrp

import (
	"math"

	"github.com/sky-flux/wcrp/randx"
)

// maxBracketSteps bounds the stepping-out phase of both slice samplers. The
// brackets span the whole parameter support in far fewer steps, so hitting
// the cap means the target density is broken.
const maxBracketSteps = 1024

// sliceSampleBounded draws a new value for a parameter with support
// [lo, hi] from the density exp(score(x)) using Neal's stepping-out and
// shrinkage slice sampler. cur and curScore are the current value and its
// score. Returns the accepted value and its score, saving the caller one
// re-evaluation.
func sliceSampleBounded(rng randx.Source, cur, curScore, lo, hi, width float64, score func(float64) float64) (float64, float64) {
	threshold := curScore + math.Log(rng.Uniform01())

	// Place an initial bracket of the given width around cur, split at a
	// uniformly random point.
	split := rng.Uniform01()
	xl := math.Max(lo, cur-split*width)
	xr := math.Min(hi, cur+(1-split)*width)

	// Step out until each edge falls below the slice.
	for i := 0; xl >= lo && score(xl) > threshold; i++ {
		if i == maxBracketSteps {
			panic("wcrp: slice sampler bracket expansion exhausted")
		}
		xl -= width
	}
	xl = math.Max(xl, lo)

	for i := 0; xr <= hi && score(xr) > threshold; i++ {
		if i == maxBracketSteps {
			panic("wcrp: slice sampler bracket expansion exhausted")
		}
		xr += width
	}
	xr = math.Min(xr, hi)

	// Shrink until a proposal lands inside the slice.
	for {
		x := xl + (xr-xl)*rng.Uniform01()
		s := score(x)
		if s > threshold {
			return x, s
		}
		switch {
		case x > cur:
			xr = x
		case x < cur:
			xl = x
		default:
			// Bracket has collapsed onto cur.
			return x, s
		}
	}
}

// sliceSampleWithPrior is the hyperparameter variant: the target density is
// exp(score(x) + priorLP(x)) with the value clamped to [lo, hi]. The
// returned score excludes the prior term, matching what the caller caches.
func sliceSampleWithPrior(rng randx.Source, cur, curScore, lo, hi, width float64, score func(float64) float64, priorLP func(float64) float64) (float64, float64) {
	threshold := curScore + priorLP(cur) + math.Log(rng.Uniform01())

	split := rng.Uniform01()
	xl := math.Max(lo, cur-split*width)
	xr := math.Min(hi, cur+(1-split)*width)

	for i := 0; xl >= lo && score(xl)+priorLP(xl) > threshold; i++ {
		if i == maxBracketSteps {
			panic("wcrp: slice sampler bracket expansion exhausted")
		}
		xl -= width
	}
	xl = math.Max(xl, lo)

	for i := 0; xr <= hi && score(xr)+priorLP(xr) > threshold; i++ {
		if i == maxBracketSteps {
			panic("wcrp: slice sampler bracket expansion exhausted")
		}
		xr += width
	}
	xr = math.Min(xr, hi)

	for {
		x := xl + (xr-xl)*rng.Uniform01()
		s := score(x)
		if s+priorLP(x) > threshold {
			return x, s
		}
		switch {
		case x > cur:
			xr = x
		case x < cur:
			xl = x
		default:
			return x, s
		}
	}
}
