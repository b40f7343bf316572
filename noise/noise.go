// Package noise synthesizes the stochastic error sequences that corrupt ideal
// sensor outputs: white (random-walk) noise, exponentially correlated
// Gauss-Markov bias instability, and fixed turn-on bias. All draws come from
// a single seeded source so a run is reproducible bit-for-bit.
package noise

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source draws all noise sequences for one run. Not safe for concurrent use;
// give each run (and each parallel worker) its own Source.
type Source struct {
	normal distuv.Normal
}

// NewSource returns a Source seeded deterministically. Two Sources built with
// the same seed produce identical sequences.
func NewSource(seed uint64) *Source {
	return &Source{
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)},
	}
}

// White returns n samples of zero-mean white noise with standard deviation
// coeff/sqrt(dt), the discrete realization of a random-walk density.
func (s *Source) White(coeff, dt float64, n int) ([]float64, error) {
	if dt <= 0 {
		return nil, errors.Errorf("white noise requires a positive sample period, got %f", dt)
	}
	sigma := coeff / math.Sqrt(dt)
	out := make([]float64, n)
	for i := range out {
		out[i] = sigma * s.normal.Rand()
	}
	return out, nil
}

// GaussMarkov returns n samples of a first-order Gauss-Markov process with
// stationary standard deviation sigma and correlation time tau, sampled at
// period dt. The sequence starts from a stationary draw, so tau=+Inf
// degenerates to a single random bias held for the whole run, and tau<=0
// degenerates to pure white noise of standard deviation sigma.
func (s *Source) GaussMarkov(sigma, tau, dt float64, n int) ([]float64, error) {
	if dt <= 0 {
		return nil, errors.Errorf("gauss-markov noise requires a positive sample period, got %f", dt)
	}
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	switch {
	case tau <= 0:
		for i := range out {
			out[i] = sigma * s.normal.Rand()
		}
	case math.IsInf(tau, 1):
		b := sigma * s.normal.Rand()
		for i := range out {
			out[i] = b
		}
	default:
		phi := math.Exp(-dt / tau)
		drive := sigma * math.Sqrt(1-phi*phi)
		b := sigma * s.normal.Rand()
		out[0] = b
		for i := 1; i < n; i++ {
			b = b*phi + drive*s.normal.Rand()
			out[i] = b
		}
	}
	return out, nil
}

// Gaussian returns n independent zero-mean draws with the given standard
// deviation.
func (s *Source) Gaussian(sigma float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = sigma * s.normal.Rand()
	}
	return out
}

// FixedBias returns one zero-mean draw with the given standard deviation,
// constant for the run.
func (s *Source) FixedBias(sigma float64) float64 {
	return sigma * s.normal.Rand()
}
