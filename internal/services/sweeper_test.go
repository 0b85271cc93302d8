package services

import (
	"testing"
	"time"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_CancelsExpiredMatches(t *testing.T) {
	h := newHarness(t, AcceptanceOptions{})
	matchID, _, _ := h.pairUp(t)
	h.clock.Advance(acceptanceWindow + time.Second)

	sweeper, err := NewSweeper(h.acceptance, 20*time.Millisecond, time.Hour, 30*time.Second)
	require.NoError(t, err)
	require.NoError(t, sweeper.Start())
	defer func() { assert.NoError(t, sweeper.Stop()) }()

	assert.Eventually(t, func() bool {
		var m models.Match
		if err := h.db.First(&m, "id = ?", matchID).Error; err != nil {
			return false
		}
		return m.Status == models.MatchStatusCancelled
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, CancelReasonTimeout, h.notifier.cancelReason(matchID))
}
