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

func newMatch(arenaID string, matchedAt time.Time, window time.Duration) *models.Match {
	deadline := matchedAt.Add(window)
	return &models.Match{
		ArenaID:            arenaID,
		ServerID:           "s1",
		FighterAID:         "g1",
		FighterBID:         "g2",
		Status:             models.MatchStatusPendingAcceptance,
		MatchedAt:          matchedAt,
		AcceptanceDeadline: &deadline,
	}
}

func TestMatchRepository_OneActiveMatchPerArena(t *testing.T) {
	ctx := context.Background()
	repo := NewMatchRepository(testutil.NewDB(t))
	now := time.Now().UTC()

	first := newMatch("arena-1", now, 30*time.Second)
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, newMatch("arena-1", now, 30*time.Second))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))

	require.NoError(t, repo.Create(ctx, newMatch("arena-2", now, 30*time.Second)))

	ok, err := repo.Transition(ctx, first.ID, models.MatchStatusPendingAcceptance,
		map[string]interface{}{"status": models.MatchStatusCancelled})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Create(ctx, newMatch("arena-1", now, 30*time.Second)),
		"a cancelled match frees the arena")
}

func TestMatchRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewMatchRepository(testutil.NewDB(t))

	_, err := repo.GetByID(ctx, "missing")
	assert.Equal(t, errors.ErrCodeMatchNotFound, errors.CodeOf(err))

	m := newMatch("arena-1", time.Now().UTC(), 30*time.Second)
	require.NoError(t, repo.Create(ctx, m))

	got, err := repo.GetByIDForUpdate(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, models.MatchStatusPendingAcceptance, got.Status)
}

func TestMatchRepository_TransitionRequiresFromStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMatchRepository(testutil.NewDB(t))

	m := newMatch("arena-1", time.Now().UTC(), 30*time.Second)
	require.NoError(t, repo.Create(ctx, m))

	ok, err := repo.Transition(ctx, m.ID, models.MatchStatusPending,
		map[string]interface{}{"status": models.MatchStatusInProgress})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Transition(ctx, m.ID, models.MatchStatusPendingAcceptance,
		map[string]interface{}{"status": models.MatchStatusPending, "acceptance_deadline": nil})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusPending, got.Status)
	assert.Nil(t, got.AcceptanceDeadline)
}

func TestMatchRepository_ListExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewMatchRepository(testutil.NewDB(t))
	now := time.Now().UTC()

	expired := newMatch("arena-1", now.Add(-time.Minute), 30*time.Second)
	fresh := newMatch("arena-2", now, 30*time.Second)
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, fresh))

	got, err := repo.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.ID, got[0].ID)
}

func TestMatchRepository_ListOrphans(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewMatchRepository(db)
	acceptances := NewAcceptanceRepository(db)
	now := time.Now().UTC()

	orphan := newMatch("arena-1", now.Add(-time.Minute), time.Hour)
	healthy := newMatch("arena-2", now.Add(-time.Minute), time.Hour)
	young := newMatch("arena-3", now, time.Hour)
	for _, m := range []*models.Match{orphan, healthy, young} {
		require.NoError(t, repo.Create(ctx, m))
	}
	require.NoError(t, acceptances.CreateBatch(ctx, []models.Acceptance{
		{MatchID: healthy.ID, GladiatorID: "g1", OwnerID: "o1"},
		{MatchID: healthy.ID, GladiatorID: "g2", OwnerID: "o2"},
	}))

	got, err := repo.ListOrphans(ctx, now.Add(-30*time.Second))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, orphan.ID, got[0].ID)
}

func TestAcceptanceRepository_MarkAcceptedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewAcceptanceRepository(db)
	now := time.Now().UTC()

	require.NoError(t, repo.CreateBatch(ctx, []models.Acceptance{
		{MatchID: "m1", GladiatorID: "g1", OwnerID: "o1"},
		{MatchID: "m1", GladiatorID: "g2", OwnerID: "o2"},
	}))

	require.NoError(t, repo.MarkAccepted(ctx, "m1", "g1", now))
	require.NoError(t, repo.MarkAccepted(ctx, "m1", "g1", now.Add(time.Second)))

	list, err := repo.ListByMatch(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	accepted := 0
	for _, a := range list {
		if a.Status == models.AcceptanceStatusAccepted {
			accepted++
		}
		if a.GladiatorID == "g1" {
			require.NotNil(t, a.RespondedAt)
			assert.WithinDuration(t, now, *a.RespondedAt, time.Millisecond)
		}
	}
	assert.Equal(t, 1, accepted)

	require.NoError(t, repo.DeleteByMatch(ctx, "m1"))
	list, err = repo.ListByMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCombatLogRepository_ListAfter(t *testing.T) {
	ctx := context.Background()
	repo := NewCombatLogRepository(testutil.NewDB(t))

	for _, n := range []int{3, 1, 2} {
		require.NoError(t, repo.Append(ctx, &models.CombatLogEntry{MatchID: "m1", ActionNumber: n, Message: "strike"}))
	}
	require.NoError(t, repo.Append(ctx, &models.CombatLogEntry{MatchID: "m2", ActionNumber: 1, Message: "other"}))

	got, err := repo.ListAfter(ctx, "m1", 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].ActionNumber)
	assert.Equal(t, 3, got[1].ActionNumber)
}

func TestContactRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewContactRepository(testutil.NewDB(t))

	_, ok, err := repo.TelegramChatID(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Upsert(ctx, "o1", 111))
	require.NoError(t, repo.Upsert(ctx, "o1", 222))

	chatID, ok, err := repo.TelegramChatID(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(222), chatID)
}

func TestContactRepository_UpsertRejectsSharedChat(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := NewContactRepository(db)

	require.NoError(t, repo.Upsert(ctx, "o1", 4242))
	err := repo.Upsert(ctx, "o2", 4242)
	assert.True(t, errors.Is(err, errors.ErrCodeConflict), "got %v", err)

	var n int64
	require.NoError(t, db.Model(&models.OwnerContact{}).Where("telegram_chat_id = ?", 4242).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestContactRepository_ConsumeLinkCode(t *testing.T) {
	ctx := context.Background()
	repo := NewContactRepository(testutil.NewDB(t))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateLinkCode(ctx, &models.TelegramLinkCode{Code: "ABCD2345", ChatID: 4242, ExpiresAt: now.Add(time.Minute)}))
	err := repo.CreateLinkCode(ctx, &models.TelegramLinkCode{Code: "ABCD2345", ChatID: 7, ExpiresAt: now.Add(time.Minute)})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict), "got %v", err)

	_, err = repo.ConsumeLinkCode(ctx, "ABCD2345", now.Add(time.Minute))
	assert.True(t, errors.Is(err, errors.ErrCodeValidation), "got %v", err)

	link, err := repo.ConsumeLinkCode(ctx, "ABCD2345", now)
	require.NoError(t, err)
	assert.Equal(t, int64(4242), link.ChatID)

	_, err = repo.ConsumeLinkCode(ctx, "ABCD2345", now)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)
}
