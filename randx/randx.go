package randx

import (
	"math"
	"math/rand"
	"time"
)

// Source is the random variate generator consumed by the sampler.
type Source interface {
	// Uniform01 returns a draw from Uniform(0, 1).
	Uniform01() float64

	// Gamma returns a draw from Gamma(shape, scale).
	Gamma(shape, scale float64) float64

	// Shuffle randomizes the order of n elements in place via swap.
	Shuffle(n int, swap func(i, j int))

	// LogCategorical draws an index from the categorical distribution
	// proportional to exp(logWeights[i]). The weights need not be
	// normalized. Panics if logWeights is empty.
	LogCategorical(logWeights []float64) int
}

type source struct {
	rng *rand.Rand
}

// New returns a Source seeded with the given value.
func New(seed int64) Source {
	return &source{rng: rand.New(rand.NewSource(seed))}
}

// NewTimeSeeded returns a Source seeded from the wall clock.
func NewTimeSeeded() Source {
	return New(time.Now().UnixNano())
}

func (s *source) Uniform01() float64 {
	return s.rng.Float64()
}

func (s *source) Shuffle(n int, swap func(i, j int)) {
	s.rng.Shuffle(n, swap)
}

// Gamma draws from Gamma(shape, scale) using the Marsaglia-Tsang method.
// Shapes below one are handled by boosting: if X ~ Gamma(shape+1) and
// U ~ Uniform(0,1), then X * U^(1/shape) ~ Gamma(shape).
func (s *source) Gamma(shape, scale float64) float64 {
	if shape <= 0 || scale <= 0 {
		panic("randx: gamma shape and scale must be positive")
	}
	if shape < 1 {
		u := s.rng.Float64()
		return s.Gamma(shape+1, scale) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = s.rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := s.rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return scale * d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return scale * d * v
		}
	}
}

// LogCategorical normalizes the log weights with the log-sum-exp trick and
// draws by inverse CDF.
func (s *source) LogCategorical(logWeights []float64) int {
	if len(logWeights) == 0 {
		panic("randx: empty log weight vector")
	}

	max := logWeights[0]
	for _, w := range logWeights[1:] {
		if w > max {
			max = w
		}
	}

	var total float64
	for _, w := range logWeights {
		total += math.Exp(w - max)
	}

	u := s.rng.Float64() * total
	var cum float64
	for i, w := range logWeights {
		cum += math.Exp(w - max)
		if u < cum {
			return i
		}
	}
	return len(logWeights) - 1 // floating point slack
}
