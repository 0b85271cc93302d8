package repositories

import (
	"context"
	"time"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"gorm.io/gorm"
)

type AcceptanceRepository struct {
	db *gorm.DB
}

func NewAcceptanceRepository(db *gorm.DB) *AcceptanceRepository {
	return &AcceptanceRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *AcceptanceRepository) WithTx(tx *gorm.DB) *AcceptanceRepository {
	return &AcceptanceRepository{db: tx}
}

func (r *AcceptanceRepository) CreateBatch(ctx context.Context, acceptances []models.Acceptance) error {
	if err := r.db.WithContext(ctx).Create(&acceptances).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create acceptances")
	}
	return nil
}

func (r *AcceptanceRepository) ListByMatch(ctx context.Context, matchID string) ([]models.Acceptance, error) {
	var acceptances []models.Acceptance
	result := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC").
		Find(&acceptances)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list acceptances")
	}
	return acceptances, nil
}

// MarkAccepted records the gladiator's acceptance. Accepting twice leaves the
// first responded_at in place.
func (r *AcceptanceRepository) MarkAccepted(ctx context.Context, matchID, gladiatorID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Acceptance{}).
		Where("match_id = ? AND gladiator_id = ? AND status = ?", matchID, gladiatorID, models.AcceptanceStatusPending).
		Updates(map[string]interface{}{
			"status":       models.AcceptanceStatusAccepted,
			"responded_at": at,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to record acceptance")
	}
	return nil
}

func (r *AcceptanceRepository) DeleteByMatch(ctx context.Context, matchID string) error {
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).Delete(&models.Acceptance{}).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to remove acceptances")
	}
	return nil
}
