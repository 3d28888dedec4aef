package main

import (
	"crypto/rand"
	"math"
)

// MassToRadius converts a body's mass to its collision radius.
// Rendering uses the same curve, so keep it in sync with the client.
func MassToRadius(mass float64) float64 {
	return 4 + math.Sqrt(mass)*6
}

// Rand is the random source the simulation draws from
type Rand interface {
	Float64() float64
}

// xorshift is a small non-crypto generator; seeded once from crypto/rand
type xorshift struct {
	state uint64
}

// NewRand returns a Rand seeded with seed, or from crypto/rand when seed is 0
func NewRand(seed uint64) Rand {
	if seed == 0 {
		b := make([]byte, 8)
		_, _ = rand.Read(b)
		for i, v := range b {
			seed |= uint64(v) << (uint(i) * 8)
		}
	}
	if seed == 0 {
		seed = 1
	}
	return &xorshift{state: seed}
}

// Float64 returns a value in [0, 1)
func (r *xorshift) Float64() float64 {
	r.state ^= r.state << 13
	r.state ^= r.state >> 7
	r.state ^= r.state << 17
	return float64(r.state>>11) / (1 << 53)
}

// RandomInRange returns floor(r*(to-from)) + from
func RandomInRange(rng Rand, from, to float64) float64 {
	return math.Floor(rng.Float64()*(to-from)) + from
}
