// Package matchmaking picks opponents from an arena's waiting queue.
package matchmaking

import (
	"time"

	"github.com/mroshb/ludus_arena/internal/models"
)

// Pair is two queue entries chosen to fight each other. A is the entry that
// appears first in the input slice.
type Pair struct {
	A models.QueueEntry
	B models.QueueEntry
}

// SkillGap is the absolute skill difference between the two entries.
func (p Pair) SkillGap() int {
	return abs(p.A.SkillScore - p.B.SkillScore)
}

// SelectBestPair returns the pair with the smallest skill gap. Entries that
// share an owner or a ludus are never paired. Among equal gaps the pair whose
// older entry queued first wins. A zero gap is optimal and returned at once.
func SelectBestPair(entries []models.QueueEntry) (Pair, bool) {
	var (
		best       Pair
		bestGap    int
		bestOldest time.Time
		found      bool
	)

	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			if !canFight(a, b) {
				continue
			}

			gap := abs(a.SkillScore - b.SkillScore)
			oldest := earlier(a.QueuedAt, b.QueuedAt)

			if !found || gap < bestGap || (gap == bestGap && oldest.Before(bestOldest)) {
				best = Pair{A: a, B: b}
				bestGap = gap
				bestOldest = oldest
				found = true
			}
			if gap == 0 {
				return best, true
			}
		}
	}

	return best, found
}

func canFight(a, b models.QueueEntry) bool {
	if a.GladiatorID == b.GladiatorID || a.OwnerID == b.OwnerID {
		return false
	}
	return a.LudusID == "" || a.LudusID != b.LudusID
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
