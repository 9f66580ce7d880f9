package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var QuestDifficulties = []string{"Easy", "Medium", "Hard", "Epic", "Legendary"}

var QuestTypes = []string{"tutorial", "combat", "collection", "exploration", "social"}

// Quest is shared reference data. Only IsActive changes after publishing.
type Quest struct {
	ID               uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title            string                      `gorm:"size:100;not null" json:"title"`
	Description      string                      `gorm:"type:text;not null" json:"description"`
	Difficulty       string                      `gorm:"size:20;not null;default:'Easy'" json:"difficulty"`
	QuestType        string                      `gorm:"size:20;not null;default:'tutorial'" json:"quest_type"`
	LevelRequirement int                         `gorm:"not null;default:1;index" json:"level_requirement"`
	PiReward         decimal.Decimal             `gorm:"type:numeric(12,2);not null;default:0" json:"pi_reward"`
	ExperienceReward int64                       `gorm:"not null" json:"experience_reward"`
	Objectives       datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"objectives"`
	MaxProgress      int                         `gorm:"not null;default:1" json:"max_progress"`
	IsActive         bool                        `gorm:"not null;index" json:"is_active"`
	IsRepeatable     bool                        `gorm:"not null;default:false" json:"is_repeatable"`
	CooldownHours    int                         `gorm:"not null;default:0" json:"cooldown_hours"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// Cooldown is the wait between a completion and the next accept.
func (q *Quest) Cooldown() time.Duration {
	return time.Duration(q.CooldownHours) * time.Hour
}
