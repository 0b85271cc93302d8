package repositories

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// Create inserts a match. A second active match in the same arena violates
// the partial unique index and comes back as CONFLICT.
func (r *MatchRepository) Create(ctx context.Context, match *models.Match) error {
	err := r.db.WithContext(ctx).Create(match).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.New(errors.ErrCodeConflict, "arena already has an active match")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create match")
	}
	return nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	return r.get(r.db.WithContext(ctx), id)
}

// GetByIDForUpdate reads the match under a row lock. Only meaningful inside a
// transaction.
func (r *MatchRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Match, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *MatchRepository) get(db *gorm.DB, id string) (*models.Match, error) {
	var match models.Match
	result := db.Where("id = ?", id).First(&match)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrCodeMatchNotFound, "match not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get match")
	}
	return &match, nil
}

// FindActiveInArena returns the arena's non-terminal match, or nil.
func (r *MatchRepository) FindActiveInArena(ctx context.Context, arenaID, serverID string) (*models.Match, error) {
	var match models.Match
	result := r.db.WithContext(ctx).
		Where("arena_id = ? AND server_id = ? AND status IN ?", arenaID, serverID, models.ActiveMatchStatuses).
		First(&match)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to check arena")
	}
	return &match, nil
}

// Transition applies updates only while the match is still in status from.
// It reports whether the row changed.
func (r *MatchRepository) Transition(ctx context.Context, id, from string, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Match{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update match")
	}
	return result.RowsAffected == 1, nil
}

// ListExpired returns pending_acceptance matches whose deadline is before now.
func (r *MatchRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Match, error) {
	var matches []models.Match
	result := r.db.WithContext(ctx).
		Where("status = ? AND acceptance_deadline < ?", models.MatchStatusPendingAcceptance, now).
		Order("acceptance_deadline ASC").
		Limit(limit).
		Find(&matches)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list expired matches")
	}
	return matches, nil
}

// ListOrphans returns pending_acceptance matches created before cutoff that
// do not carry exactly two acceptance rows.
func (r *MatchRepository) ListOrphans(ctx context.Context, cutoff time.Time) ([]models.Match, error) {
	acceptanceCount := r.db.Model(&models.Acceptance{}).
		Select("COUNT(*)").
		Where("match_acceptances.match_id = matches.id")

	var matches []models.Match
	result := r.db.WithContext(ctx).
		Where("status = ? AND matched_at < ?", models.MatchStatusPendingAcceptance, cutoff).
		Where("(?) <> 2", acceptanceCount).
		Find(&matches)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list orphaned matches")
	}
	return matches, nil
}

// ListByArena returns the arena's most recent matches, newest first.
func (r *MatchRepository) ListByArena(ctx context.Context, arenaID, serverID string, limit int) ([]models.Match, error) {
	var matches []models.Match
	result := r.db.WithContext(ctx).
		Where("arena_id = ? AND server_id = ?", arenaID, serverID).
		Order("matched_at DESC").
		Limit(limit).
		Find(&matches)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list matches")
	}
	return matches, nil
}
