package generator

import "math/rand/v2"

// Rand is the entropy source the generator draws uniform [0,1) values from.
type Rand interface {
	Float64() float64
}

// NewSeededRand returns a reproducible source. It is not safe for concurrent use.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// globalRand draws from the runtime's shared, randomly seeded source.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
