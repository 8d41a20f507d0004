package service

import (
	"math/rand"
	"sync"
	"time"
)

// uniformSelector picks uniformly at random from a pool. Fairness, not
// unpredictability against an adversary, is the requirement here: math/rand
// gives a statistically uniform distribution, and a seedable source keeps
// tests deterministic. Do not use this where a security boundary is involved.
type uniformSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWinnerSelector creates a selector seeded from the clock
func NewWinnerSelector() WinnerSelector {
	return NewSeededWinnerSelector(time.Now().UnixNano())
}

// NewSeededWinnerSelector creates a selector with a fixed seed
func NewSeededWinnerSelector(seed int64) WinnerSelector {
	return &uniformSelector{rng: rand.New(rand.NewSource(seed))}
}

// Pick returns one element of pool, or ErrEmptyPool
func (s *uniformSelector) Pick(pool []int64) (int64, error) {
	if len(pool) == 0 {
		return 0, ErrEmptyPool
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return pool[s.rng.Intn(len(pool))], nil
}

// BuildPool returns the entry IDs minus the excluded set, preserving entry order
func BuildPool(entries []int64, excluded []int64) []int64 {
	excludedSet := make(map[int64]struct{}, len(excluded))
	for _, id := range excluded {
		excludedSet[id] = struct{}{}
	}

	pool := make([]int64, 0, len(entries))
	for _, id := range entries {
		if _, ok := excludedSet[id]; !ok {
			pool = append(pool, id)
		}
	}
	return pool
}

// RemoveFromPool returns pool without the given ID
func RemoveFromPool(pool []int64, id int64) []int64 {
	out := pool[:0]
	for _, candidate := range pool {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
