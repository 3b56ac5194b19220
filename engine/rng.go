package engine

import "math/rand"

// RNG wraps math/rand.Rand with deterministic position tracking.
// Every public draw consumes exactly one raw value, so a session restored
// from (seed, position) replays identically regardless of which draw
// methods produced the position.
type RNG struct {
	seed int64
	src  *rand.Rand
	pos  int64
}

// NewRNG creates a new deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// RestoreRNG creates an RNG and advances it to the given position.
// This reproduces the exact RNG state for save/load.
func RestoreRNG(seed int64, position int64) *RNG {
	r := NewRNG(seed)
	for i := int64(0); i < position; i++ {
		r.src.Int63()
	}
	r.pos = position
	return r
}

// raw returns one base value and advances the position.
func (r *RNG) raw() int64 {
	r.pos++
	return r.src.Int63()
}

// Intn returns a random integer in [0, n). n must be positive.
func (r *RNG) Intn(n int) int {
	return int(r.raw() % int64(n))
}

// IntRange returns a random integer in [lo, hi], inclusive.
// The bounds may be given in either order.
func (r *RNG) IntRange(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + r.Intn(hi-lo+1)
}

// Float64 returns a random float in [0, 1).
func (r *RNG) Float64() float64 {
	return float64(r.raw()) / (1 << 63)
}

// Chance rolls once against probability p. p outside [0,1] is clamped.
func (r *RNG) Chance(p float64) bool {
	if p <= 0 {
		r.raw() // burn a draw so the position stays call-count aligned
		return false
	}
	if p >= 1 {
		r.raw()
		return true
	}
	return r.Float64() < p
}

// WeightedSelect returns an index chosen by weighted random selection.
// Non-positive weights are treated as zero; if all weights are zero the
// first index wins.
func (r *RNG) WeightedSelect(weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		r.raw()
		return 0
	}
	roll := r.Intn(total)
	cumulative := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if roll < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// Seed returns the seed this RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Position returns the number of draws made since creation.
func (r *RNG) Position() int64 {
	return r.pos
}
