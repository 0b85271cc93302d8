package models

import (
	"time"
)

// CombatLogEntry is one narrated combat action. Rows are appended by the
// combat simulator; this service only reads them.
type CombatLogEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MatchID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_combat_log_match_action,priority:1" json:"match_id"`
	ActionNumber int       `gorm:"not null;uniqueIndex:idx_combat_log_match_action,priority:2" json:"action_number"`
	Message      string    `gorm:"type:text;not null" json:"message"`
	Type         string    `gorm:"type:varchar(32);not null;default:'action'" json:"type"`
	HealthA      *int      `json:"health_a,omitempty"`
	HealthB      *int      `json:"health_b,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CombatLogEntry) TableName() string {
	return "combat_logs"
}
