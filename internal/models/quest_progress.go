package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QuestProgress tracks the numeric progress of one (user, quest) pair.
type QuestProgress struct {
	ID              uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID          uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_quest_progress_user_quest,priority:1" json:"user_id"`
	QuestID         uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_quest_progress_user_quest,priority:2" json:"quest_id"`
	CurrentProgress int                         `gorm:"not null;default:0;check:chk_quest_progress_current,current_progress >= 0" json:"current_progress"`
	IsCompleted     bool                        `gorm:"not null;default:false" json:"is_completed"`
	CompletionData  datatypes.JSONMap           `gorm:"type:jsonb;default:'{}'" json:"completion_data"`
	ProcessedEvents datatypes.JSONSlice[string] `gorm:"type:jsonb;default:'[]'" json:"-"`
	StartedAt       time.Time                   `gorm:"not null" json:"started_at"`
	CompletedAt     *time.Time                  `json:"completed_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	User            User                        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// HasProcessed reports whether a client progress event was already applied.
func (p *QuestProgress) HasProcessed(eventID string) bool {
	for _, id := range p.ProcessedEvents {
		if id == eventID {
			return true
		}
	}
	return false
}
