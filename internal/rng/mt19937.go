// Package rng implements the 32-bit MT19937 generator with the exact
// seeding, double, Gaussian, and uniform derivations used by NumPy's
// legacy RandomState. The published reference values for the systematics
// models were produced by that generator, so bit-compatibility with its
// stream is a hard requirement here — equal seed and equal inputs must give
// bit-identical injected timestreams.
package rng

import "math"

const (
	n         = 624
	m         = 397
	matrixA   = 0x9908b0df
	upperMask = 0x80000000
	lowerMask = 0x7fffffff
)

// Source is a deterministic random stream seeded with a 32-bit scalar.
// Not safe for concurrent use; each injection call owns its own Source.
type Source struct {
	state [n]uint32
	index int

	// One-deviate cache for the polar Gaussian method.
	hasGauss bool
	gauss    float64
}

// New creates a Source from a scalar seed, using MT19937's init_genrand
// initialization (the RandomState scalar-seed path).
func New(seed uint32) *Source {
	s := &Source{}
	s.state[0] = seed
	for i := uint32(1); i < n; i++ {
		prev := s.state[i-1]
		s.state[i] = 1812433253*(prev^(prev>>30)) + i
	}
	s.index = n
	return s
}

// Uint32 returns the next 32-bit output of the generator.
func (s *Source) Uint32() uint32 {
	if s.index >= n {
		for k := 0; k < n; k++ {
			y := (s.state[k] & upperMask) | (s.state[(k+1)%n] & lowerMask)
			v := s.state[(k+m)%n] ^ (y >> 1)
			if y&1 != 0 {
				v ^= matrixA
			}
			s.state[k] = v
		}
		s.index = 0
	}

	y := s.state[s.index]
	s.index++
	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Float64 returns a double in [0, 1) with 53 random bits, composed from two
// 32-bit outputs exactly as RandomState's random_sample does.
func (s *Source) Float64() float64 {
	a := s.Uint32() >> 5
	b := s.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) / 9007199254740992.0
}

// StandardNormal returns a standard Gaussian deviate using the Marsaglia
// polar method with the one-value cache, matching RandomState's gauss
// derivation including the order in which the pair is consumed.
func (s *Source) StandardNormal() float64 {
	if s.hasGauss {
		s.hasGauss = false
		return s.gauss
	}

	var x1, x2, r2 float64
	for {
		x1 = 2.0*s.Float64() - 1.0
		x2 = 2.0*s.Float64() - 1.0
		r2 = x1*x1 + x2*x2
		if r2 < 1.0 && r2 != 0.0 {
			break
		}
	}
	f := math.Sqrt(-2.0 * math.Log(r2) / r2)
	s.gauss = f * x1
	s.hasGauss = true
	return f * x2
}

// Normal fills a length-count slice with draws from N(mu, sigma).
func (s *Source) Normal(mu, sigma float64, count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = mu + sigma*s.StandardNormal()
	}
	return out
}

// Uniform fills a length-count slice with draws from U[lo, hi).
func (s *Source) Uniform(lo, hi float64, count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = lo + (hi-lo)*s.Float64()
	}
	return out
}
