package stream

import (
	"math/rand/v2"
	"sync"
)

// Rand is the source of randomness for page choice and shuffling.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand uses the runtime-seeded global generator.
func DefaultRand() Rand { return globalRand{} }

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewRand returns a deterministic, goroutine-safe generator.
func NewRand(seed1, seed2 uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed1, seed2))}
}

// Shuffle permutes items in place (Fisher-Yates).
func Shuffle[T any](items []T, rng Rand) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
