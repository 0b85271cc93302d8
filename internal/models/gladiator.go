package models

import "time"

// Gladiator mirrors the gladiator table owned by the ludus service. This
// service reads it for eligibility, ownership and skill; it never writes it
// outside of migrations and tests.
type Gladiator struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	LudusID    string    `gorm:"type:varchar(64);not null;index" json:"ludus_id"`
	OwnerID    string    `gorm:"type:varchar(64);not null;index" json:"owner_id"`
	ServerID   string    `gorm:"type:varchar(64);not null;index" json:"server_id"`
	Alive      bool      `gorm:"not null;default:true" json:"alive"`
	Health     int       `gorm:"not null;default:100" json:"health"`
	SkillScore int       `gorm:"not null;default:1000" json:"skill_score"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Gladiator) TableName() string {
	return "gladiators"
}

// GladiatorSummary is what an opponent is allowed to see.
type GladiatorSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LudusID    string `json:"ludus_id"`
	Health     int    `json:"health"`
	SkillScore int    `json:"skill_score"`
}

func (g *Gladiator) Summary() GladiatorSummary {
	return GladiatorSummary{
		ID:         g.ID,
		Name:       g.Name,
		LudusID:    g.LudusID,
		Health:     g.Health,
		SkillScore: g.SkillScore,
	}
}

// OwnerContact stores where an owner wants match notifications delivered.
type OwnerContact struct {
	OwnerID        string    `gorm:"primaryKey;type:varchar(64)" json:"owner_id"`
	TelegramChatID int64     `gorm:"not null;index" json:"telegram_chat_id"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OwnerContact) TableName() string {
	return "owner_contacts"
}

// TelegramLinkCode is handed out by the bot's /start command. Echoing it back
// through the API proves the caller controls the chat.
type TelegramLinkCode struct {
	Code      string    `gorm:"primaryKey;type:varchar(16)" json:"code"`
	ChatID    int64     `gorm:"not null;index" json:"chat_id"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TelegramLinkCode) TableName() string {
	return "telegram_link_codes"
}
