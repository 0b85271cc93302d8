package database

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mroshb/ludus_arena/internal/models"
	"github.com/mroshb/ludus_arena/pkg/logger"
	"gorm.io/gorm"
)

// Both partial indexes use syntax understood by postgres and sqlite.
const (
	oneActiveMatchPerArenaIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_one_active_per_arena
		ON matches (arena_id, server_id)
		WHERE status IN ('pending_acceptance', 'pending', 'in_progress')`

	oneWaitingEntryPerGladiatorIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_one_waiting_per_gladiator
		ON queue_entries (gladiator_id)
		WHERE status = 'waiting'`

	dropShadowedContacts = `DELETE FROM owner_contacts WHERE owner_id IN (
		SELECT older.owner_id FROM owner_contacts older
		JOIN owner_contacts newer
			ON newer.telegram_chat_id = older.telegram_chat_id
			AND (newer.updated_at > older.updated_at
				OR (newer.updated_at = older.updated_at AND newer.owner_id > older.owner_id)))`

	oneOwnerPerChatIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_owner_contacts_one_owner_per_chat
		ON owner_contacts (telegram_chat_id)`
)

func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "20260301_create_gladiators_table",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Gladiator{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("gladiators")
			},
		},
		{
			ID: "20260301_create_matchmaking_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.QueueEntry{}, &models.Match{}, &models.Acceptance{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("match_acceptances", "matches", "queue_entries")
			},
		},
		{
			ID: "20260301_create_combat_logs_table",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.CombatLogEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("combat_logs")
			},
		},
		{
			ID: "20260315_matchmaking_partial_unique_indexes",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.Exec(oneActiveMatchPerArenaIndex).Error; err != nil {
					return err
				}
				return tx.Exec(oneWaitingEntryPerGladiatorIndex).Error
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec("DROP INDEX IF EXISTS idx_matches_one_active_per_arena").Error; err != nil {
					return err
				}
				return tx.Exec("DROP INDEX IF EXISTS idx_queue_one_waiting_per_gladiator").Error
			},
		},
		{
			ID: "20260402_create_owner_contacts_table",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.OwnerContact{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("owner_contacts")
			},
		},
		{
			ID: "20261019_create_telegram_link_codes_table",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.TelegramLinkCode{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("telegram_link_codes")
			},
		},
		{
			ID: "20261019_owner_contacts_unique_chat",
			Migrate: func(tx *gorm.DB) error {
				// Keep the newest link where a chat was claimed by several owners.
				if err := tx.Exec(dropShadowedContacts).Error; err != nil {
					return err
				}
				return tx.Exec(oneOwnerPerChatIndex).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_owner_contacts_one_owner_per_chat").Error
			},
		},
	}
}

func Migrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	m := gormigrate.New(db, gormigrate.DefaultOptions, Migrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}
