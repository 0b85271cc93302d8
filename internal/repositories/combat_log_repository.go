package repositories

import (
	"context"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"gorm.io/gorm"
)

type CombatLogRepository struct {
	db *gorm.DB
}

func NewCombatLogRepository(db *gorm.DB) *CombatLogRepository {
	return &CombatLogRepository{db: db}
}

// ListAfter returns the match's log entries with action_number > afterAction
// in ascending order.
func (r *CombatLogRepository) ListAfter(ctx context.Context, matchID string, afterAction int) ([]models.CombatLogEntry, error) {
	var entries []models.CombatLogEntry
	result := r.db.WithContext(ctx).
		Where("match_id = ? AND action_number > ?", matchID, afterAction).
		Order("action_number ASC").
		Find(&entries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to read combat log")
	}
	return entries, nil
}

// Append stores one entry. The simulator owns production writes; this is used
// by the dev seeder and tests.
func (r *CombatLogRepository) Append(ctx context.Context, entry *models.CombatLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to append combat log")
	}
	return nil
}
