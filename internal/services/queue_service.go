package services

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/internal/security"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
	"gorm.io/gorm"
)

type JoinRequest struct {
	ArenaID     string `json:"arena_id"`
	ServerID    string `json:"server_id"`
	GladiatorID string `json:"gladiator_id"`
}

func (r JoinRequest) validate() error {
	for _, id := range []string{r.ArenaID, r.ServerID, r.GladiatorID} {
		if !security.ValidIdentifier(id) {
			return errors.New(errors.ErrCodeValidation, "arena_id, server_id and gladiator_id are required")
		}
	}
	return nil
}

type JoinResult struct {
	Entry   *models.QueueEntry `json:"entry"`
	MatchID *string            `json:"match_id"`
}

type QueueService struct {
	queue        *repositories.QueueRepository
	gladiators   *repositories.GladiatorRepository
	orchestrator *Orchestrator
	clock        clockwork.Clock
}

func NewQueueService(db *gorm.DB, orchestrator *Orchestrator, clock clockwork.Clock) *QueueService {
	return &QueueService{
		queue:        repositories.NewQueueRepository(db),
		gladiators:   repositories.NewGladiatorRepository(db),
		orchestrator: orchestrator,
		clock:        clock,
	}
}

// Join puts the owner's gladiator in the arena queue and immediately tries
// to pair the arena. A failed pairing attempt does not fail the join.
func (s *QueueService) Join(ctx context.Context, ownerID string, req JoinRequest) (*JoinResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	gladiator, err := s.gladiators.GetByID(ctx, req.GladiatorID)
	if err != nil {
		return nil, err
	}
	if gladiator.OwnerID != ownerID {
		return nil, errors.New(errors.ErrCodeNotOwner, "you do not own this gladiator")
	}
	if !gladiator.Alive {
		return nil, errors.New(errors.ErrCodeNotEligible, "gladiator cannot fight")
	}
	if gladiator.ServerID != req.ServerID {
		return nil, errors.New(errors.ErrCodeWrongServer, "gladiator belongs to another server")
	}

	existing, err := s.queue.FindActiveForGladiator(ctx, gladiator.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New(errors.ErrCodeAlreadyQueued, "gladiator is already queued")
	}

	entry := &models.QueueEntry{
		ArenaID:     req.ArenaID,
		ServerID:    req.ServerID,
		GladiatorID: gladiator.ID,
		LudusID:     gladiator.LudusID,
		OwnerID:     ownerID,
		SkillScore:  gladiator.SkillScore,
		QueuedAt:    s.clock.Now().UTC(),
		Status:      models.QueueStatusWaiting,
	}
	if err := s.queue.Create(ctx, entry); err != nil {
		return nil, err
	}

	logger.Info("Gladiator queued",
		"queue_id", entry.ID,
		"arena_id", entry.ArenaID,
		"server_id", entry.ServerID,
		"gladiator_id", entry.GladiatorID,
		"skill_score", entry.SkillScore,
	)

	if _, err := s.orchestrator.AttemptMatch(ctx, req.ArenaID, req.ServerID); err != nil {
		logger.Warn("Matchmaking after join failed", "queue_id", entry.ID, "error", err)
	}

	fresh, err := s.queue.GetByID(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	return &JoinResult{Entry: fresh, MatchID: fresh.MatchID}, nil
}

// Leave cancels the owner's waiting entry.
func (s *QueueService) Leave(ctx context.Context, queueID, ownerID string) (*models.QueueEntry, error) {
	if !security.ValidIdentifier(queueID) {
		return nil, errors.New(errors.ErrCodeValidation, "queue_id is required")
	}

	entry, err := s.queue.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if entry.OwnerID != ownerID {
		return nil, errors.New(errors.ErrCodeNotOwner, "you do not own this queue entry")
	}
	if entry.Status != models.QueueStatusWaiting {
		return nil, errors.New(errors.ErrCodeNotWaiting, "queue entry is no longer waiting")
	}

	left, err := s.queue.CancelWaiting(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if !left {
		return nil, errors.New(errors.ErrCodeNotWaiting, "queue entry is no longer waiting")
	}

	logger.Info("Gladiator left queue", "queue_id", queueID, "gladiator_id", entry.GladiatorID)
	entry.Status = models.QueueStatusCancelled
	return entry, nil
}

func (s *QueueService) ListWaiting(ctx context.Context, arenaID, serverID string) ([]models.QueueEntry, error) {
	if !security.ValidIdentifier(arenaID) || !security.ValidIdentifier(serverID) {
		return nil, errors.New(errors.ErrCodeValidation, "arena_id and server_id are required")
	}
	return s.queue.ListWaiting(ctx, arenaID, serverID)
}
