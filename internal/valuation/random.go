package valuation

import (
	"math/rand"
	"sync"
	"time"
)

// RandomSource yields values in [0,1).
type RandomSource interface {
	Float64() float64
}

type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// NewSeededSource returns a deterministic source safe for concurrent use.
func NewSeededSource(seed int64) RandomSource {
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

// NewTimeSource returns a source seeded from the clock.
func NewTimeSource() RandomSource {
	return NewSeededSource(time.Now().UnixNano())
}

// FixedSource always returns the same value.
type FixedSource float64

// Float64 returns s.
func (s FixedSource) Float64() float64 { return float64(s) }
