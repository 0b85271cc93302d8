package services

import (
	"context"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/internal/security"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"gorm.io/gorm"
)

type MatchDetail struct {
	Match       *models.Match            `json:"match"`
	FighterA    *models.GladiatorSummary `json:"fighter_a"`
	FighterB    *models.GladiatorSummary `json:"fighter_b"`
	Acceptances []models.Acceptance      `json:"acceptances,omitempty"`
}

type MatchService struct {
	matches     *repositories.MatchRepository
	acceptances *repositories.AcceptanceRepository
	gladiators  *repositories.GladiatorRepository
}

func NewMatchService(db *gorm.DB) *MatchService {
	return &MatchService{
		matches:     repositories.NewMatchRepository(db),
		acceptances: repositories.NewAcceptanceRepository(db),
		gladiators:  repositories.NewGladiatorRepository(db),
	}
}

// Get returns the match as seen by one of its participants.
func (s *MatchService) Get(ctx context.Context, matchID, ownerID string) (*MatchDetail, error) {
	if !security.ValidIdentifier(matchID) {
		return nil, errors.New(errors.ErrCodeValidation, "match_id is required")
	}

	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}

	_, fighters, err := participant(ctx, s.gladiators, match, ownerID)
	if err != nil {
		return nil, err
	}

	detail := &MatchDetail{
		Match:    match,
		FighterA: summaryOf(fighters, match.FighterAID),
		FighterB: summaryOf(fighters, match.FighterBID),
	}

	if match.Status == models.MatchStatusPendingAcceptance {
		if detail.Acceptances, err = s.acceptances.ListByMatch(ctx, matchID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

func summaryOf(fighters map[string]models.Gladiator, id string) *models.GladiatorSummary {
	g, ok := fighters[id]
	if !ok {
		return nil
	}
	summary := g.Summary()
	return &summary
}
