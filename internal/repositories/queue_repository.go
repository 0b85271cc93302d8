package repositories

import (
	"context"
	stderrors "errors"

	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"gorm.io/gorm"
)

type QueueRepository struct {
	db *gorm.DB
}

func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *QueueRepository) WithTx(tx *gorm.DB) *QueueRepository {
	return &QueueRepository{db: tx}
}

// Create inserts a waiting entry. The partial unique index on waiting rows
// turns a concurrent double join into ALREADY_QUEUED.
func (r *QueueRepository) Create(ctx context.Context, entry *models.QueueEntry) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.New(errors.ErrCodeAlreadyQueued, "gladiator is already queued")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to add to queue")
	}
	return nil
}

func (r *QueueRepository) GetByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&entry)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrCodeNotFound, "queue entry not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get queue entry")
	}

	return &entry, nil
}

// FindActiveForGladiator returns the gladiator's waiting entry, or its matched
// entry while that match is still live. Returns nil when there is neither.
func (r *QueueRepository) FindActiveForGladiator(ctx context.Context, gladiatorID string) (*models.QueueEntry, error) {
	activeMatches := r.db.Model(&models.Match{}).Select("id").Where("status IN ?", models.ActiveMatchStatuses)

	var entry models.QueueEntry
	result := r.db.WithContext(ctx).
		Where("gladiator_id = ?", gladiatorID).
		Where(r.db.Where("status = ?", models.QueueStatusWaiting).
			Or("status = ? AND match_id IN (?)", models.QueueStatusMatched, activeMatches)).
		Order("queued_at DESC").
		First(&entry)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to check queue")
	}
	return &entry, nil
}

// ListWaiting returns the arena's waiting entries, oldest first.
func (r *QueueRepository) ListWaiting(ctx context.Context, arenaID, serverID string) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	result := r.db.WithContext(ctx).
		Where("arena_id = ? AND server_id = ? AND status = ?", arenaID, serverID, models.QueueStatusWaiting).
		Order("queued_at ASC").
		Order("id ASC").
		Find(&entries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list queue")
	}
	return entries, nil
}

func (r *QueueRepository) ListByMatch(ctx context.Context, matchID string) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).Find(&entries).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list match queue entries")
	}
	return entries, nil
}

// MarkMatched moves a waiting entry to matched. It reports false when the row
// was no longer waiting.
func (r *QueueRepository) MarkMatched(ctx context.Context, id, matchID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("id = ? AND status = ?", id, models.QueueStatusWaiting).
		Updates(map[string]interface{}{
			"status":   models.QueueStatusMatched,
			"match_id": matchID,
		})

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to mark queue entry matched")
	}
	return result.RowsAffected == 1, nil
}

// CancelWaiting moves a waiting entry to cancelled. It reports false when the
// row was no longer waiting.
func (r *QueueRepository) CancelWaiting(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("id = ? AND status = ?", id, models.QueueStatusWaiting).
		Update("status", models.QueueStatusCancelled)

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to leave queue")
	}
	return result.RowsAffected == 1, nil
}

// CancelForMatch cancels the gladiator's entry that was matched into matchID.
// With clearLink the entry also forgets the match.
func (r *QueueRepository) CancelForMatch(ctx context.Context, gladiatorID, matchID string, clearLink bool) error {
	updates := map[string]interface{}{"status": models.QueueStatusCancelled}
	if clearLink {
		updates["match_id"] = nil
	}

	result := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("gladiator_id = ? AND match_id = ? AND status = ?", gladiatorID, matchID, models.QueueStatusMatched).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to cancel queue entry")
	}
	return nil
}

// CancelAllForMatch cancels every entry still matched into matchID.
func (r *QueueRepository) CancelAllForMatch(ctx context.Context, matchID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("match_id = ? AND status = ?", matchID, models.QueueStatusMatched).
		Update("status", models.QueueStatusCancelled)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to cancel match queue entries")
	}
	return result.RowsAffected, nil
}

// RequeueForMatch returns the gladiator's matched entry to waiting.
func (r *QueueRepository) RequeueForMatch(ctx context.Context, gladiatorID, matchID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.QueueEntry{}).
		Where("gladiator_id = ? AND match_id = ? AND status = ?", gladiatorID, matchID, models.QueueStatusMatched).
		Updates(map[string]interface{}{
			"status":   models.QueueStatusWaiting,
			"match_id": nil,
		})
	if stderrors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to requeue entry")
	}
	return result.RowsAffected == 1, nil
}

// DeleteForMatch removes every entry linked to matchID.
func (r *QueueRepository) DeleteForMatch(ctx context.Context, matchID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("match_id = ?", matchID).Delete(&models.QueueEntry{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to remove queue entries")
	}
	return result.RowsAffected, nil
}
