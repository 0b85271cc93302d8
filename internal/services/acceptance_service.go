package services

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/internal/coordination"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/internal/security"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
	"gorm.io/gorm"
)

type AcceptResult struct {
	Acceptance   *models.Acceptance `json:"acceptance"`
	BothAccepted bool               `json:"both_accepted"`
}

type DeclineResult struct {
	MatchCancelled bool `json:"match_cancelled"`
}

type TimeoutResult struct {
	Cancelled bool `json:"cancelled"`
}

type AcceptanceOptions struct {
	// RequeueOnDecline puts the declined-upon gladiator back in the queue
	// instead of cancelling its entry.
	RequeueOnDecline bool
	// SweepBatch caps how many expired matches one sweep handles.
	SweepBatch int
}

// AcceptanceService drives a proposed match to pending or cancelled. Every
// mutation re-reads the match under a row lock and re-checks its status.
type AcceptanceService struct {
	db           *gorm.DB
	queue        *repositories.QueueRepository
	matches      *repositories.MatchRepository
	acceptances  *repositories.AcceptanceRepository
	gladiators   *repositories.GladiatorRepository
	orchestrator *Orchestrator
	notifier     MatchNotifier
	bus          coordination.LogBus
	clock        clockwork.Clock
	opts         AcceptanceOptions
}

func NewAcceptanceService(db *gorm.DB, orchestrator *Orchestrator, notifier MatchNotifier, bus coordination.LogBus, clock clockwork.Clock, opts AcceptanceOptions) *AcceptanceService {
	if notifier == nil {
		notifier = NopNotifier()
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 100
	}
	return &AcceptanceService{
		db:           db,
		queue:        repositories.NewQueueRepository(db),
		matches:      repositories.NewMatchRepository(db),
		acceptances:  repositories.NewAcceptanceRepository(db),
		gladiators:   repositories.NewGladiatorRepository(db),
		orchestrator: orchestrator,
		notifier:     notifier,
		bus:          bus,
		clock:        clock,
		opts:         opts,
	}
}

// participant resolves which of the match's fighters ownerID controls.
func participant(ctx context.Context, gladiators *repositories.GladiatorRepository, match *models.Match, ownerID string) (string, map[string]models.Gladiator, error) {
	fighters, err := gladiators.GetMany(ctx, []string{match.FighterAID, match.FighterBID})
	if err != nil {
		return "", nil, err
	}
	for _, id := range []string{match.FighterAID, match.FighterBID} {
		if g, ok := fighters[id]; ok && ownerID != "" && g.OwnerID == ownerID {
			return id, fighters, nil
		}
	}
	return "", fighters, errors.New(errors.ErrCodeNotParticipant, "you are not part of this match")
}

func (s *AcceptanceService) loadForCaller(ctx context.Context, matchID, ownerID string) (*models.Match, string, map[string]models.Gladiator, error) {
	if !security.ValidIdentifier(matchID) {
		return nil, "", nil, errors.New(errors.ErrCodeValidation, "match_id is required")
	}
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, "", nil, err
	}
	gladiatorID, fighters, err := participant(ctx, s.gladiators, match, ownerID)
	if err != nil {
		return nil, "", nil, err
	}
	return match, gladiatorID, fighters, nil
}

// Accept records the caller's acceptance. The second acceptance moves the
// match to pending. Accepting twice is a no-op.
func (s *AcceptanceService) Accept(ctx context.Context, matchID, ownerID string) (*AcceptResult, error) {
	_, gladiatorID, _, err := s.loadForCaller(ctx, matchID, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	result := &AcceptResult{}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := s.matches.WithTx(tx)
		acceptances := s.acceptances.WithTx(tx)

		match, err := matches.GetByIDForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusPendingAcceptance {
			return errors.New(errors.ErrCodeAlreadyResolved, "match is no longer awaiting acceptance")
		}
		if match.AcceptanceDeadline != nil && now.After(*match.AcceptanceDeadline) {
			return errors.New(errors.ErrCodeAcceptanceExpired, "the match offer has expired")
		}

		if err := acceptances.MarkAccepted(ctx, matchID, gladiatorID, now); err != nil {
			return err
		}

		rows, err := acceptances.ListByMatch(ctx, matchID)
		if err != nil {
			return err
		}
		accepted := 0
		for i := range rows {
			if rows[i].Status == models.AcceptanceStatusAccepted {
				accepted++
			}
			if rows[i].GladiatorID == gladiatorID {
				result.Acceptance = &rows[i]
			}
		}
		if result.Acceptance == nil {
			return errors.New(errors.ErrCodeAlreadyResolved, "match has no acceptance for this gladiator")
		}

		if accepted == len(rows) && accepted == 2 {
			moved, err := matches.Transition(ctx, matchID, models.MatchStatusPendingAcceptance, map[string]interface{}{
				"status":              models.MatchStatusPending,
				"acceptance_deadline": nil,
			})
			if err != nil {
				return err
			}
			result.BothAccepted = moved
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Match accepted", "match_id", matchID, "gladiator_id", gladiatorID, "both_accepted", result.BothAccepted)
	if result.BothAccepted {
		s.publish(matchID)
	}
	return result, nil
}

// Decline cancels the match on behalf of one participant.
func (s *AcceptanceService) Decline(ctx context.Context, matchID, ownerID string) (*DeclineResult, error) {
	_, gladiatorID, fighters, err := s.loadForCaller(ctx, matchID, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var (
		cancelled *models.Match
		requeued  bool
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := s.matches.WithTx(tx)
		queue := s.queue.WithTx(tx)

		match, err := matches.GetByIDForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusPendingAcceptance {
			return errors.New(errors.ErrCodeAlreadyResolved, "match is no longer awaiting acceptance")
		}
		// Past the deadline the match belongs to Timeout, which drops both entries.
		if match.AcceptanceDeadline != nil && now.After(*match.AcceptanceDeadline) {
			return errors.New(errors.ErrCodeAcceptanceExpired, "the match offer has expired")
		}

		if err := s.cancelMatch(ctx, matches, match); err != nil {
			return err
		}
		if err := s.acceptances.WithTx(tx).DeleteByMatch(ctx, matchID); err != nil {
			return err
		}

		if err := queue.CancelForMatch(ctx, gladiatorID, matchID, true); err != nil {
			return err
		}
		opponent := match.Opponent(gladiatorID)
		if s.opts.RequeueOnDecline {
			if requeued, err = queue.RequeueForMatch(ctx, opponent, matchID); err != nil {
				return err
			}
		}
		if !requeued {
			if err := queue.CancelForMatch(ctx, opponent, matchID, false); err != nil {
				return err
			}
		}

		cancelled = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Match declined", "match_id", matchID, "gladiator_id", gladiatorID, "opponent_requeued", requeued)
	s.publish(matchID)
	s.notifier.MatchCancelled(cancelled, CancelReasonDeclined, ownersOf(fighters))

	if requeued {
		if _, err := s.orchestrator.AttemptMatch(ctx, cancelled.ArenaID, cancelled.ServerID); err != nil {
			logger.Warn("Matchmaking after decline failed", "match_id", matchID, "error", err)
		}
	}

	return &DeclineResult{MatchCancelled: true}, nil
}

// Timeout cancels a match whose acceptance window has passed and drops both
// queue entries. A match that already left pending_acceptance reports
// cancelled=false.
func (s *AcceptanceService) Timeout(ctx context.Context, matchID string) (*TimeoutResult, error) {
	if !security.ValidIdentifier(matchID) {
		return nil, errors.New(errors.ErrCodeValidation, "match_id is required")
	}

	now := s.clock.Now().UTC()
	var (
		cancelled *models.Match
		owners    []string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := s.matches.WithTx(tx)
		acceptances := s.acceptances.WithTx(tx)

		match, err := matches.GetByIDForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if match.Status != models.MatchStatusPendingAcceptance {
			return nil
		}
		if match.AcceptanceDeadline == nil || !now.After(*match.AcceptanceDeadline) {
			return errors.New(errors.ErrCodeTimeoutNotReached, "acceptance window is still open")
		}

		rows, err := acceptances.ListByMatch(ctx, matchID)
		if err != nil {
			return err
		}
		for _, a := range rows {
			owners = append(owners, a.OwnerID)
		}

		if err := s.cancelMatch(ctx, matches, match); err != nil {
			return err
		}
		if err := acceptances.DeleteByMatch(ctx, matchID); err != nil {
			return err
		}
		if _, err := s.queue.WithTx(tx).DeleteForMatch(ctx, matchID); err != nil {
			return err
		}

		cancelled = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cancelled == nil {
		return &TimeoutResult{Cancelled: false}, nil
	}

	logger.Info("Match timed out", "match_id", matchID, "deadline", cancelled.AcceptanceDeadline)
	s.publish(matchID)
	s.notifier.MatchCancelled(cancelled, CancelReasonTimeout, owners)
	return &TimeoutResult{Cancelled: true}, nil
}

// SweepExpired times out every pending_acceptance match past its deadline.
func (s *AcceptanceService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.matches.ListExpired(ctx, s.clock.Now().UTC(), s.opts.SweepBatch)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, m := range expired {
		res, err := s.Timeout(ctx, m.ID)
		if err != nil {
			logger.Warn("Timeout sweep failed for match", "match_id", m.ID, "error", err)
			continue
		}
		if res.Cancelled {
			swept++
		}
	}
	return swept, nil
}

// Reconcile cancels pending_acceptance matches older than grace that lack
// their two acceptance rows. Their matched entries are cancelled.
func (s *AcceptanceService) Reconcile(ctx context.Context, grace time.Duration) (int, error) {
	now := s.clock.Now().UTC()
	orphans, err := s.matches.ListOrphans(ctx, now.Add(-grace))
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, orphan := range orphans {
		var owners []string
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			matches := s.matches.WithTx(tx)

			match, err := matches.GetByIDForUpdate(ctx, orphan.ID)
			if err != nil {
				return err
			}
			if match.Status != models.MatchStatusPendingAcceptance {
				return nil
			}

			entries, err := s.queue.WithTx(tx).ListByMatch(ctx, match.ID)
			if err != nil {
				return err
			}
			for _, e := range entries {
				owners = append(owners, e.OwnerID)
			}

			if err := s.cancelMatch(ctx, matches, match); err != nil {
				return err
			}
			if err := s.acceptances.WithTx(tx).DeleteByMatch(ctx, match.ID); err != nil {
				return err
			}
			_, err = s.queue.WithTx(tx).CancelAllForMatch(ctx, match.ID)
			return err
		})
		if err != nil {
			logger.Error("Failed to reconcile orphaned match", "match_id", orphan.ID, "error", err)
			continue
		}

		fixed++
		orphan.Status = models.MatchStatusCancelled
		logger.Warn("Cancelled orphaned match", "match_id", orphan.ID, "arena_id", orphan.ArenaID)
		s.publish(orphan.ID)
		s.notifier.MatchCancelled(&orphan, CancelReasonOrphaned, owners)
	}
	return fixed, nil
}

func (s *AcceptanceService) cancelMatch(ctx context.Context, matches *repositories.MatchRepository, match *models.Match) error {
	moved, err := matches.Transition(ctx, match.ID, models.MatchStatusPendingAcceptance, map[string]interface{}{
		"status":              models.MatchStatusCancelled,
		"acceptance_deadline": nil,
	})
	if err != nil {
		return err
	}
	if !moved {
		return errors.New(errors.ErrCodeAlreadyResolved, "match is no longer awaiting acceptance")
	}
	match.Status = models.MatchStatusCancelled
	return nil
}

// publish wakes stream sessions following the match. Delivery is best effort.
func (s *AcceptanceService) publish(matchID string) {
	if s.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.bus.Publish(ctx, matchID); err != nil {
		logger.Debug("Failed to publish match hint", "match_id", matchID, "error", err)
	}
}

func ownersOf(fighters map[string]models.Gladiator) []string {
	owners := make([]string, 0, len(fighters))
	for _, g := range fighters {
		owners = append(owners, g.OwnerID)
	}
	return owners
}
