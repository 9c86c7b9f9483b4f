// Package rng provides the process-wide PRNG stream behind the engine's
// Random leaf ops (spec.md §4.5, "Random"). It is grounded on the
// math/rand usage in github.com/zerfoo/zerfoo's compute.CPUEngine.RandomUniform,
// generalized into a single shared, seedable stream instead of a
// fresh source per call, so that a seeded run is reproducible end to end.
package rng

import (
	"math"
	"math/rand"
	"sync"
)

var (
	mu     sync.Mutex
	source = rand.New(rand.NewSource(1)) //nolint:gosec // G404: math/rand is fine for ML initialization, not security.
)

// Seed reseeds the process-wide stream. Not safe to call concurrently with
// realization on other goroutines; see spec.md §5, "Shared-resource
// policy".
func Seed(seed int64) {
	mu.Lock()
	defer mu.Unlock()
	source = rand.New(rand.NewSource(seed)) //nolint:gosec // G404
}

// NextSeed draws a per-op seed from the shared stream. Random leaf Arrays
// capture this value in their Params so that two realizations of the same
// unmutated node reproduce the same values.
func NextSeed() int64 {
	mu.Lock()
	defer mu.Unlock()

	return source.Int63()
}

// Stream returns a private *rand.Rand derived from seed, used by a kernel
// to deterministically fill a buffer without touching the shared stream
// again.
func Stream(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed)) //nolint:gosec // G404
}

// Uniform draws n values uniformly from [low, high) using r.
func Uniform(r *rand.Rand, low, high float64, n int) []float64 {
	span := high - low
	out := make([]float64, n)

	for i := range out {
		out[i] = low + r.Float64()*span
	}

	return out
}

// Normal draws n values from the standard normal distribution via the
// Box-Muller transform.
func Normal(r *rand.Rand, n int) []float64 {
	out := make([]float64, n)

	for i := 0; i < n; i += 2 {
		u1 := math.Max(r.Float64(), 1e-12)
		u2 := r.Float64()
		radius := math.Sqrt(-2 * math.Log(u1))
		theta := 2 * math.Pi * u2

		out[i] = radius * math.Cos(theta)
		if i+1 < n {
			out[i+1] = radius * math.Sin(theta)
		}
	}

	return out
}

// Randint draws n values uniformly from the half-open integer range
// [low, high).
func Randint(r *rand.Rand, low, high, n int) []int32 {
	span := high - low
	out := make([]int32, n)

	for i := range out {
		out[i] = int32(low + r.Intn(span))
	}

	return out
}

// Randbool draws n independent fair coin flips.
func Randbool(r *rand.Rand, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = r.Intn(2) == 1
	}

	return out
}
