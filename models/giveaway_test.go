package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGiveaway_ClaimDeadline(t *testing.T) {
	ended := time.Now().Add(-2 * time.Hour)
	giveaway := &Giveaway{
		ClaimTimeoutSeconds: 300,
		EndedAt:             &ended,
	}

	assert.Nil(t, giveaway.ClaimDeadline())

	// A reroll long after the giveaway ended opens a window measured from
	// the current announcement, not from the end
	announcedAt := time.Now()
	giveaway.WinnerAnnouncedAt = &announcedAt

	deadline := giveaway.ClaimDeadline()
	require.NotNil(t, deadline)
	assert.Equal(t, announcedAt.Add(5*time.Minute), *deadline)
	assert.True(t, deadline.After(time.Now()))
}
