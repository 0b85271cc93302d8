package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueueEntry is a gladiator's membership in an arena queue.
type QueueEntry struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ArenaID     string    `gorm:"type:varchar(64);not null;index:idx_queue_arena_status,priority:1" json:"arena_id"`
	ServerID    string    `gorm:"type:varchar(64);not null;index:idx_queue_arena_status,priority:2" json:"server_id"`
	GladiatorID string    `gorm:"type:varchar(64);not null;index" json:"gladiator_id"`
	LudusID     string    `gorm:"type:varchar(64);not null" json:"ludus_id"`
	OwnerID     string    `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	SkillScore  int       `gorm:"not null;default:0" json:"skill_score"`
	QueuedAt    time.Time `gorm:"not null;index" json:"queued_at"`
	Status      string    `gorm:"type:varchar(16);not null;default:'waiting';index:idx_queue_arena_status,priority:3" json:"status"`
	MatchID     *string   `gorm:"type:varchar(36);index" json:"match_id,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Queue status constants
const (
	QueueStatusWaiting   = "waiting"
	QueueStatusMatched   = "matched"
	QueueStatusCancelled = "cancelled"
)

func (QueueEntry) TableName() string {
	return "queue_entries"
}

func (q *QueueEntry) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Status == "" {
		q.Status = QueueStatusWaiting
	}
	switch q.Status {
	case QueueStatusWaiting, QueueStatusMatched, QueueStatusCancelled:
	default:
		return gorm.ErrInvalidData
	}
	if q.ArenaID == "" || q.ServerID == "" || q.GladiatorID == "" || q.OwnerID == "" {
		return gorm.ErrInvalidData
	}
	return nil
}
