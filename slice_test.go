package wcrp

import (
	"math"
	"testing"

	"github.com/sky-flux/wcrp/randx"
)

func TestSliceSampleBoundedStaysInBounds(t *testing.T) {
	rng := randx.New(5)
	// Standard normal restricted to [-2, 2].
	score := func(x float64) float64 { return -x * x / 2 }

	x := 0.5
	s := score(x)
	for i := 0; i < 2000; i++ {
		x, s = sliceSampleBounded(rng, x, s, -2, 2, 0.4, score)
		if x < -2 || x > 2 {
			t.Fatalf("draw %d escaped bounds: %v", i, x)
		}
	}
}

func TestSliceSampleBoundedTargetsDensity(t *testing.T) {
	rng := randx.New(17)
	// Normal(0.3, 0.1) on [0, 1]: nearly all mass inside, so the sample
	// mean should land near 0.3.
	mean, sd := 0.3, 0.1
	score := func(x float64) float64 {
		d := (x - mean) / sd
		return -d * d / 2
	}

	x := 0.9
	s := score(x)
	var sum float64
	const n = 5000
	for i := 0; i < n; i++ {
		x, s = sliceSampleBounded(rng, x, s, 0, 1, 0.1, score)
		sum += x
	}
	if got := sum / n; math.Abs(got-mean) > 0.02 {
		t.Errorf("sample mean = %v, want ~%v", got, mean)
	}
}

func TestSliceSampleBoundedFlatTarget(t *testing.T) {
	rng := randx.New(23)
	// A flat density degenerates to uniform draws on the support.
	score := func(float64) float64 { return 0 }

	x := 0.5
	s := score(x)
	var lo, hi float64 = 1, 0
	for i := 0; i < 3000; i++ {
		x, s = sliceSampleBounded(rng, x, s, 0, 1, 0.1, score)
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo > 0.05 || hi < 0.95 {
		t.Errorf("flat target draws span [%v, %v], expected near-full support", lo, hi)
	}
}

func TestSliceSampleWithPriorRespectsPrior(t *testing.T) {
	rng := randx.New(31)
	// Flat likelihood: the prior alone shapes the draws. Use a sharp
	// normal prior at -1 on [-5, 5].
	score := func(float64) float64 { return 0 }
	prior := func(x float64) float64 {
		d := (x + 1) / 0.2
		return -d * d / 2
	}

	x := 2.0
	s := score(x)
	var sum float64
	const n = 4000
	for i := 0; i < n; i++ {
		x, s = sliceSampleWithPrior(rng, x, s, -5, 5, 0.25, score, prior)
		sum += x
	}
	if got := sum / n; math.Abs(got+1) > 0.05 {
		t.Errorf("sample mean = %v, want ~-1", got)
	}
}

func TestSliceSampleReturnsScoreOfAcceptedValue(t *testing.T) {
	rng := randx.New(41)
	score := func(x float64) float64 { return -x * x }

	x, s := sliceSampleBounded(rng, 0.2, score(0.2), -1, 1, 0.3, score)
	if math.Abs(s-score(x)) > 1e-12 {
		t.Errorf("returned score %v does not match score(%v) = %v", s, x, score(x))
	}
}
