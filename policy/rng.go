package policy

import (
	"crypto/rand"
	"encoding/binary"
	"math"
)

// rng is a small, explicitly seedable splitmix64 generator. The standard
// library's math/rand.Rand does not expose or restore its internal state,
// which breaks the snapshot/restore round-trip the spec requires for
// seeded determinism (RNG state must survive a restart, see property #4/#5
// and the snapshot contract in §4.A). Exposing a single uint64 state word
// makes that round-trip exact and trivial to serialize.
type rng struct {
	state uint64
}

// newRNG seeds the generator. A nil seed draws 8 bytes from the OS.
func newRNG(seed *uint64) *rng {
	if seed != nil {
		return &rng{state: *seed}
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is not something callers can act on; fall
		// back to a fixed non-zero seed rather than panic.
		return &rng{state: 0x9E3779B97F4A7C15}
	}
	return &rng{state: binary.LittleEndian.Uint64(buf[:])}
}

// State returns the current generator state, for snapshotting.
func (r *rng) State() uint64 { return r.state }

// restoreRNG reconstructs a generator from a previously snapshotted state.
func restoreRNG(state uint64) *rng { return &rng{state: state} }

// next advances the generator and returns the next raw uint64 (splitmix64).
func (r *rng) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Float64 returns a pseudo-random value in [0, 1).
func (r *rng) Float64() float64 {
	// Top 53 bits give a uniformly distributed double in [0,1).
	return float64(r.next()>>11) / float64(1<<53)
}

// normFloat64 draws a standard-normal sample via the Box-Muller transform.
// The second sample of each pair is not cached: every call consumes fresh
// uniforms (gamma sampling here never asks for more than a few draws per
// decision, so discarding the second sample is cheap and keeps the
// generator state deterministic regardless of call pattern).
func (r *rng) normFloat64() float64 {
	// Avoid u1 == 0, which would make log(u1) undefined.
	var u1 float64
	for u1 == 0 {
		u1 = r.Float64()
	}
	u2 := r.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
