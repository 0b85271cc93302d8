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

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ContactRepository) WithTx(tx *gorm.DB) *ContactRepository {
	return &ContactRepository{db: tx}
}

// Upsert links ownerID to a Telegram chat, replacing any previous chat.
// A chat already linked to another owner is a conflict.
func (r *ContactRepository) Upsert(ctx context.Context, ownerID string, chatID int64) error {
	contact := models.OwnerContact{OwnerID: ownerID, TelegramChatID: chatID}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"telegram_chat_id", "updated_at"}),
	}).Create(&contact)

	if stderrors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return errors.New(errors.ErrCodeConflict, "chat is linked to another owner")
	}
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to save contact")
	}
	return nil
}

// TelegramChatID returns the owner's chat id and whether one is registered.
func (r *ContactRepository) TelegramChatID(ctx context.Context, ownerID string) (int64, bool, error) {
	var contact models.OwnerContact
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&contact)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if result.Error != nil {
		return 0, false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get contact")
	}
	return contact.TelegramChatID, true, nil
}

// OwnerByChatID returns the owner linked to a Telegram chat.
func (r *ContactRepository) OwnerByChatID(ctx context.Context, chatID int64) (string, bool, error) {
	var contact models.OwnerContact
	result := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&contact)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if result.Error != nil {
		return "", false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get contact")
	}
	return contact.OwnerID, true, nil
}

// CreateLinkCode stores a freshly issued code. A clash on the code itself
// comes back as CONFLICT so the caller can draw another.
func (r *ContactRepository) CreateLinkCode(ctx context.Context, code *models.TelegramLinkCode) error {
	err := r.db.WithContext(ctx).Create(code).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.New(errors.ErrCodeConflict, "link code already exists")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create link code")
	}
	return nil
}

// DeleteStaleLinkCodes drops the chat's earlier codes along with every code
// that expired by now.
func (r *ContactRepository) DeleteStaleLinkCodes(ctx context.Context, chatID int64, now time.Time) error {
	err := r.db.WithContext(ctx).
		Where("chat_id = ? OR expires_at <= ?", chatID, now).
		Delete(&models.TelegramLinkCode{}).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete link codes")
	}
	return nil
}

// ConsumeLinkCode deletes an unexpired code and returns it. A code is good
// for one link only; a concurrent consumer loses the delete and gets NOT_FOUND.
func (r *ContactRepository) ConsumeLinkCode(ctx context.Context, code string, now time.Time) (*models.TelegramLinkCode, error) {
	var link models.TelegramLinkCode
	result := r.db.WithContext(ctx).Where("code = ?", code).First(&link)

	if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.ErrCodeNotFound, "link code not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get link code")
	}
	if !now.Before(link.ExpiresAt) {
		return nil, errors.New(errors.ErrCodeValidation, "link code has expired")
	}

	result = r.db.WithContext(ctx).Where("code = ?", code).Delete(&models.TelegramLinkCode{})
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to consume link code")
	}
	if result.RowsAffected == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "link code not found")
	}
	return &link, nil
}
