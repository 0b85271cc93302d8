package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/testutil"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(gladiatorID, ownerID string, score int, queuedAt time.Time) *models.QueueEntry {
	return &models.QueueEntry{
		ArenaID:     "arena-1",
		ServerID:    "s1",
		GladiatorID: gladiatorID,
		LudusID:     "ludus-" + ownerID,
		OwnerID:     ownerID,
		SkillScore:  score,
		QueuedAt:    queuedAt,
	}
}

func TestQueueRepository_CreateRejectsSecondWaitingEntry(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(testutil.NewDB(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newEntry("g1", "o1", 1000, now)))

	err := repo.Create(ctx, newEntry("g1", "o1", 1000, now.Add(time.Second)))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyQueued, errors.CodeOf(err))

	// A cancelled entry does not block a new one.
	first, err := repo.FindActiveForGladiator(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, first)
	ok, err := repo.CancelWaiting(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Create(ctx, newEntry("g1", "o1", 1000, now.Add(2*time.Second))))
}

func TestQueueRepository_ListWaitingOrdersByQueuedAt(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(testutil.NewDB(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newEntry("late", "o1", 1000, now.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newEntry("early", "o2", 1000, now)))

	other := newEntry("elsewhere", "o3", 1000, now)
	other.ArenaID = "arena-2"
	require.NoError(t, repo.Create(ctx, other))

	entries, err := repo.ListWaiting(ctx, "arena-1", "s1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "early", entries[0].GladiatorID)
	assert.Equal(t, "late", entries[1].GladiatorID)
}

func TestQueueRepository_MarkMatchedIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(testutil.NewDB(t))

	entry := newEntry("g1", "o1", 1000, time.Now().UTC())
	require.NoError(t, repo.Create(ctx, entry))

	ok, err := repo.MarkMatched(ctx, entry.ID, "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkMatched(ctx, entry.ID, "m2")
	require.NoError(t, err)
	assert.False(t, ok, "second flip must miss")

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusMatched, got.Status)
	require.NotNil(t, got.MatchID)
	assert.Equal(t, "m1", *got.MatchID)
}

func TestQueueRepository_FindActiveForGladiator(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewQueueRepository(db)
	matches := NewMatchRepository(db)
	now := time.Now().UTC()

	got, err := repo.FindActiveForGladiator(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, got)

	match := &models.Match{ArenaID: "arena-1", ServerID: "s1", FighterAID: "g1", FighterBID: "g2",
		Status: models.MatchStatusPendingAcceptance, MatchedAt: now}
	require.NoError(t, matches.Create(ctx, match))

	entry := newEntry("g1", "o1", 1000, now)
	require.NoError(t, repo.Create(ctx, entry))
	ok, err := repo.MarkMatched(ctx, entry.ID, match.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = repo.FindActiveForGladiator(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, got, "matched into a live match counts as queued")

	changed, err := matches.Transition(ctx, match.ID, models.MatchStatusPendingAcceptance,
		map[string]interface{}{"status": models.MatchStatusCompleted})
	require.NoError(t, err)
	require.True(t, changed)

	got, err = repo.FindActiveForGladiator(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, got, "a finished match frees the gladiator")
}

func TestQueueRepository_RequeueAndDeleteForMatch(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(testutil.NewDB(t))
	now := time.Now().UTC()

	a := newEntry("g1", "o1", 1000, now)
	b := newEntry("g2", "o2", 1000, now)
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	_, err := repo.MarkMatched(ctx, a.ID, "m1")
	require.NoError(t, err)
	_, err = repo.MarkMatched(ctx, b.ID, "m1")
	require.NoError(t, err)

	ok, err := repo.RequeueForMatch(ctx, "g2", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusWaiting, got.Status)
	assert.Nil(t, got.MatchID)

	n, err := repo.DeleteForMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByID(ctx, a.ID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}
