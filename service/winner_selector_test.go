package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformSelector_EmptyPool(t *testing.T) {
	selector := NewSeededWinnerSelector(1)

	_, err := selector.Pick(nil)

	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestUniformSelector_SingleCandidate(t *testing.T) {
	selector := NewSeededWinnerSelector(1)

	winner, err := selector.Pick([]int64{42})

	require.NoError(t, err)
	assert.Equal(t, int64(42), winner)
}

func TestUniformSelector_Deterministic(t *testing.T) {
	pool := []int64{1, 2, 3, 4, 5}

	a := NewSeededWinnerSelector(99)
	b := NewSeededWinnerSelector(99)

	for i := 0; i < 20; i++ {
		wa, err := a.Pick(pool)
		require.NoError(t, err)
		wb, err := b.Pick(pool)
		require.NoError(t, err)
		assert.Equal(t, wa, wb)
	}
}

func TestUniformSelector_CoversWholePool(t *testing.T) {
	pool := []int64{1, 2, 3, 4}
	selector := NewSeededWinnerSelector(7)

	seen := make(map[int64]int)
	for i := 0; i < 1000; i++ {
		winner, err := selector.Pick(pool)
		require.NoError(t, err)
		seen[winner]++
	}

	// Each candidate should be picked a reasonable share of the time
	for _, id := range pool {
		assert.Greater(t, seen[id], 150, "candidate %d picked too rarely", id)
	}
}

func TestBuildPool_FiltersExcluded(t *testing.T) {
	pool := BuildPool([]int64{1, 2, 3, 4}, []int64{2, 4})

	assert.Equal(t, []int64{1, 3}, pool)
}

func TestBuildPool_NoExclusions(t *testing.T) {
	pool := BuildPool([]int64{1, 2, 3}, nil)

	assert.Equal(t, []int64{1, 2, 3}, pool)
}

func TestBuildPool_AllExcluded(t *testing.T) {
	pool := BuildPool([]int64{1, 2}, []int64{1, 2})

	assert.Empty(t, pool)
}

func TestRemoveFromPool(t *testing.T) {
	pool := RemoveFromPool([]int64{1, 2, 3}, 2)

	assert.Equal(t, []int64{1, 3}, pool)
}
