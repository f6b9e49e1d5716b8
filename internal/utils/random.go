// Package utils holds small shared helpers, currently the seedable RNG
// used for key and payload generation.
package utils

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
	"time"
)

// Random is a deterministic pseudo-random generator with helpers for the
// generation tasks the workers need. Given the same seed it reproduces the
// same stream, which makes load shapes repeatable across runs.
type Random struct {
	rng  *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRandom creates a Random with the given seed. A zero seed draws a
// cryptographically random one.
func NewRandom(seed int64) *Random {
	var actual uint64
	if seed == 0 {
		actual = generateRandomSeed()
	} else {
		actual = uint64(seed)
	}
	return &Random{
		rng:  rand.New(rand.NewPCG(actual, actual^0xDEADBEEF)),
		seed: actual,
	}
}

func generateRandomSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Seed returns the seed this RNG was initialized with.
func (r *Random) Seed() uint64 { return r.seed }

// Fork creates a new Random with a derived seed, giving an independent
// stream that is still reproducible from the parent seed.
func (r *Random) Fork() *Random {
	r.mu.Lock()
	defer r.mu.Unlock()

	newSeed := r.rng.Uint64()
	return &Random{
		rng:  rand.New(rand.NewPCG(newSeed, newSeed^0xCAFEBABE)),
		seed: newSeed,
	}
}

// ForkN creates n independent Randoms, one per worker goroutine.
func (r *Random) ForkN(n int) []*Random {
	results := make([]*Random, n)
	for i := 0; i < n; i++ {
		results[i] = r.Fork()
	}
	return results
}

// IntN returns a pseudo-random int in [0, n).
func (r *Random) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

// Int64N returns a pseudo-random int64 in [0, n).
func (r *Random) Int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Int64N(n)
}

// Int64Range returns a pseudo-random int64 in [min, max].
func (r *Random) Int64Range(min, max int64) int64 {
	if min >= max {
		return min
	}
	return min + r.Int64N(max-min+1)
}

// Float64 returns a pseudo-random float64 in [0.0, 1.0).
func (r *Random) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Probability returns true with probability p.
func (r *Random) Probability(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// String generates a random alphanumeric string of the given length.
func (r *Random) String(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[r.IntN(len(charset))]
	}
	return string(result)
}
