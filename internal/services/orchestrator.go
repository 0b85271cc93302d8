package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/internal/coordination"
	"github.com/mroshb/ludus_arena/internal/matchmaking"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
	"gorm.io/gorm"
)

// Orchestrator turns an arena's waiting queue into a proposed match.
type Orchestrator struct {
	db          *gorm.DB
	queue       *repositories.QueueRepository
	matches     *repositories.MatchRepository
	acceptances *repositories.AcceptanceRepository
	locker      coordination.ArenaLocker
	notifier    MatchNotifier
	clock       clockwork.Clock
	window      time.Duration
}

func NewOrchestrator(db *gorm.DB, locker coordination.ArenaLocker, notifier MatchNotifier, clock clockwork.Clock, window time.Duration) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &Orchestrator{
		db:          db,
		queue:       repositories.NewQueueRepository(db),
		matches:     repositories.NewMatchRepository(db),
		acceptances: repositories.NewAcceptanceRepository(db),
		locker:      locker,
		notifier:    notifier,
		clock:       clock,
		window:      window,
	}
}

var errEntryTaken = errors.New(errors.ErrCodeConflict, "queue entry is no longer waiting")

// AttemptMatch proposes a match for the arena if it has no live match and
// its queue holds an eligible pair. It returns nil without error when there is
// nothing to do or another caller won the race.
func (o *Orchestrator) AttemptMatch(ctx context.Context, arenaID, serverID string) (*models.Match, error) {
	unlock, err := o.locker.Lock(ctx, coordination.ArenaKey(serverID, arenaID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	inFlight, err := o.matches.FindActiveInArena(ctx, arenaID, serverID)
	if err != nil {
		return nil, err
	}
	if inFlight != nil {
		logger.Debug("Arena busy, skipping matchmaking", "arena_id", arenaID, "server_id", serverID, "match_id", inFlight.ID)
		return nil, nil
	}

	waiting, err := o.queue.ListWaiting(ctx, arenaID, serverID)
	if err != nil {
		return nil, err
	}

	pair, ok := matchmaking.SelectBestPair(waiting)
	if !ok {
		return nil, nil
	}

	now := o.clock.Now().UTC()
	deadline := now.Add(o.window)
	match := &models.Match{
		ArenaID:            arenaID,
		ServerID:           serverID,
		FighterAID:         pair.A.GladiatorID,
		FighterBID:         pair.B.GladiatorID,
		Status:             models.MatchStatusPendingAcceptance,
		MatchedAt:          now,
		AcceptanceDeadline: &deadline,
	}

	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := o.matches.WithTx(tx).Create(ctx, match); err != nil {
			return err
		}

		queue := o.queue.WithTx(tx)
		for _, entry := range []models.QueueEntry{pair.A, pair.B} {
			flipped, err := queue.MarkMatched(ctx, entry.ID, match.ID)
			if err != nil {
				return err
			}
			if !flipped {
				return errEntryTaken
			}
		}

		return o.acceptances.WithTx(tx).CreateBatch(ctx, []models.Acceptance{
			{MatchID: match.ID, GladiatorID: pair.A.GladiatorID, OwnerID: pair.A.OwnerID},
			{MatchID: match.ID, GladiatorID: pair.B.GladiatorID, OwnerID: pair.B.OwnerID},
		})
	})

	if errors.Is(err, errors.ErrCodeConflict) {
		logger.Info("Matchmaking race lost", "arena_id", arenaID, "server_id", serverID, "reason", err.Error())
		return nil, nil
	}
	if err != nil {
		logger.Error("Failed to create match", "arena_id", arenaID, "server_id", serverID, "error", err)
		return nil, err
	}

	logger.Info("Match proposed",
		"match_id", match.ID,
		"arena_id", arenaID,
		"server_id", serverID,
		"fighter_a", match.FighterAID,
		"fighter_b", match.FighterBID,
		"skill_gap", pair.SkillGap(),
	)
	o.notifier.MatchProposed(match, []string{pair.A.OwnerID, pair.B.OwnerID})

	return match, nil
}
