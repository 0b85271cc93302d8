package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Acceptance is one participant's answer to a proposed match.
type Acceptance struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchID     string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_acceptance_match_gladiator,priority:1" json:"match_id"`
	GladiatorID string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_acceptance_match_gladiator,priority:2" json:"gladiator_id"`
	OwnerID     string     `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	Status      string     `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Acceptance status constants
const (
	AcceptanceStatusPending  = "pending"
	AcceptanceStatusAccepted = "accepted"
	AcceptanceStatusDeclined = "declined"
)

func (Acceptance) TableName() string {
	return "match_acceptances"
}

func (a *Acceptance) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AcceptanceStatusPending
	}
	switch a.Status {
	case AcceptanceStatusPending, AcceptanceStatusAccepted, AcceptanceStatusDeclined:
	default:
		return gorm.ErrInvalidData
	}
	if a.MatchID == "" || a.GladiatorID == "" || a.OwnerID == "" {
		return gorm.ErrInvalidData
	}
	return nil
}
