package services

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/internal/repositories"
	"github.com/mroshb/ludus_arena/pkg/errors"
	"github.com/mroshb/ludus_arena/pkg/logger"
	"github.com/mroshb/ludus_arena/pkg/utils"
	"gorm.io/gorm"
)

const (
	LinkCodeLength = 8
	LinkCodeTTL    = 10 * time.Minute

	linkCodeAttempts = 3
)

// ContactService links owners to Telegram chats. A link needs a code the bot
// sent to the chat, so an owner can only claim a chat they can read.
type ContactService struct {
	db       *gorm.DB
	contacts *repositories.ContactRepository
	clock    clockwork.Clock
}

func NewContactService(db *gorm.DB, clock clockwork.Clock) *ContactService {
	return &ContactService{
		db:       db,
		contacts: repositories.NewContactRepository(db),
		clock:    clock,
	}
}

// IssueLinkCode replaces any outstanding code for chatID with a fresh one.
func (s *ContactService) IssueLinkCode(ctx context.Context, chatID int64) (string, time.Time, error) {
	now := s.clock.Now().UTC()
	if err := s.contacts.DeleteStaleLinkCodes(ctx, chatID, now); err != nil {
		return "", time.Time{}, err
	}

	expiresAt := now.Add(LinkCodeTTL)
	for attempt := 0; attempt < linkCodeAttempts; attempt++ {
		code, err := utils.GenerateCode(LinkCodeLength)
		if err != nil {
			return "", time.Time{}, errors.Wrap(err, errors.ErrCodeInternalError, "failed to generate link code")
		}

		err = s.contacts.CreateLinkCode(ctx, &models.TelegramLinkCode{Code: code, ChatID: chatID, ExpiresAt: expiresAt})
		if errors.Is(err, errors.ErrCodeConflict) {
			continue
		}
		if err != nil {
			return "", time.Time{}, err
		}
		return code, expiresAt, nil
	}
	return "", time.Time{}, errors.New(errors.ErrCodeInternalError, "failed to issue a unique link code")
}

// Link redeems code for ownerID. The code is spent even when the chat turns
// out to belong to someone else, so a guessed code cannot be retried.
func (s *ContactService) Link(ctx context.Context, ownerID, code string) (*models.OwnerContact, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errors.New(errors.ErrCodeValidation, "code is required")
	}

	now := s.clock.Now().UTC()
	var (
		link    *models.TelegramLinkCode
		claimed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contacts := s.contacts.WithTx(tx)

		var err error
		link, err = contacts.ConsumeLinkCode(ctx, code, now)
		if err != nil {
			return err
		}

		current, ok, err := contacts.OwnerByChatID(ctx, link.ChatID)
		if err != nil {
			return err
		}
		if ok && current != ownerID {
			// Commit so the code is gone, then report the conflict.
			claimed = true
			return nil
		}
		return contacts.Upsert(ctx, ownerID, link.ChatID)
	})
	if err != nil {
		return nil, err
	}
	if claimed {
		logger.Warn("Link code redeemed for a chat owned by someone else", "owner_id", ownerID, "chat_id", link.ChatID)
		return nil, errors.New(errors.ErrCodeConflict, "chat is linked to another owner")
	}

	logger.Info("Telegram chat linked", "owner_id", ownerID, "chat_id", link.ChatID)
	return &models.OwnerContact{OwnerID: ownerID, TelegramChatID: link.ChatID, UpdatedAt: now}, nil
}
