package repositories

import (
	"context"
	stderrors "errors"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"gorm.io/gorm"
)

type GladiatorRepository struct {
	db *gorm.DB
}

func NewGladiatorRepository(db *gorm.DB) *GladiatorRepository {
	return &GladiatorRepository{db: db}
}

func (r *GladiatorRepository) GetByID(ctx context.Context, id string) (*models.Gladiator, error) {
	var gladiator models.Gladiator
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&gladiator)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrCodeNotFound, "gladiator not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get gladiator")
	}
	return &gladiator, nil
}

// GetMany returns the requested gladiators keyed by id. Missing ids are absent.
func (r *GladiatorRepository) GetMany(ctx context.Context, ids []string) (map[string]models.Gladiator, error) {
	var gladiators []models.Gladiator
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&gladiators).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get gladiators")
	}

	byID := make(map[string]models.Gladiator, len(gladiators))
	for _, g := range gladiators {
		byID[g.ID] = g
	}
	return byID, nil
}
