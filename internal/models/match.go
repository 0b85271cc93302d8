package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Match is a proposed or confirmed pairing of two gladiators in one arena.
type Match struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ArenaID            string     `gorm:"type:varchar(64);not null;index:idx_match_arena_status,priority:1" json:"arena_id"`
	ServerID           string     `gorm:"type:varchar(64);not null;index:idx_match_arena_status,priority:2" json:"server_id"`
	FighterAID         string     `gorm:"type:varchar(64);not null;index" json:"fighter_a_id"`
	FighterBID         string     `gorm:"type:varchar(64);not null;index" json:"fighter_b_id"`
	Status             string     `gorm:"type:varchar(20);not null;default:'pending_acceptance';index:idx_match_arena_status,priority:3" json:"status"`
	MatchedAt          time.Time  `gorm:"not null;index" json:"matched_at"`
	AcceptanceDeadline *time.Time `gorm:"index" json:"acceptance_deadline,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	WinnerID           *string    `gorm:"type:varchar(64)" json:"winner_id,omitempty"`
	WinnerMethod       *string    `gorm:"type:varchar(32)" json:"winner_method,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Match status constants
const (
	MatchStatusPendingAcceptance = "pending_acceptance"
	MatchStatusPending           = "pending"
	MatchStatusInProgress        = "in_progress"
	MatchStatusCompleted         = "completed"
	MatchStatusCancelled         = "cancelled"
)

// ActiveMatchStatuses are the non-terminal statuses. An arena holds at most
// one match in any of them.
var ActiveMatchStatuses = []string{
	MatchStatusPendingAcceptance,
	MatchStatusPending,
	MatchStatusInProgress,
}

func (Match) TableName() string {
	return "matches"
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if !IsValidMatchStatus(m.Status) {
		return gorm.ErrInvalidData
	}
	if m.FighterAID == "" || m.FighterBID == "" || m.FighterAID == m.FighterBID {
		return gorm.ErrInvalidData
	}
	return nil
}

// IsActive reports whether the match still occupies its arena.
func (m *Match) IsActive() bool {
	for _, s := range ActiveMatchStatuses {
		if m.Status == s {
			return true
		}
	}
	return false
}

// HasFighter reports whether gladiatorID is one of the two fighters.
func (m *Match) HasFighter(gladiatorID string) bool {
	return gladiatorID != "" && (m.FighterAID == gladiatorID || m.FighterBID == gladiatorID)
}

// Opponent returns the other fighter's id, or "" when gladiatorID is not in the match.
func (m *Match) Opponent(gladiatorID string) string {
	switch gladiatorID {
	case m.FighterAID:
		return m.FighterBID
	case m.FighterBID:
		return m.FighterAID
	}
	return ""
}

func IsValidMatchStatus(status string) bool {
	switch status {
	case MatchStatusPendingAcceptance, MatchStatusPending, MatchStatusInProgress,
		MatchStatusCompleted, MatchStatusCancelled:
		return true
	}
	return false
}
