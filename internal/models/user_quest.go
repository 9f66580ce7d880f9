package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserQuestStatus string

const (
	UserQuestAccepted   UserQuestStatus = "accepted"
	UserQuestInProgress UserQuestStatus = "in_progress"
	UserQuestCompleted  UserQuestStatus = "completed"
	UserQuestFailed     UserQuestStatus = "failed"
	UserQuestAbandoned  UserQuestStatus = "abandoned"
)

var UserQuestStatuses = []string{
	string(UserQuestAccepted),
	string(UserQuestInProgress),
	string(UserQuestCompleted),
	string(UserQuestFailed),
	string(UserQuestAbandoned),
}

// UserQuest is the acceptance and claim record for one (user, quest) pair.
// Reward amounts are copied from the quest when it is accepted.
type UserQuest struct {
	ID                     uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID                 uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_user_quests_user_quest,priority:1" json:"user_id"`
	QuestID                uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_user_quests_user_quest,priority:2;index" json:"quest_id"`
	Status                 UserQuestStatus `gorm:"size:20;not null;default:'accepted';index" json:"status"`
	AcceptedAt             time.Time       `gorm:"not null" json:"accepted_at"`
	CompletedAt            *time.Time      `json:"completed_at"`
	LastCompletedAt        *time.Time      `json:"last_completed_at"`
	ExpiresAt              *time.Time      `json:"expires_at"`
	RewardsClaimed         bool            `gorm:"not null;default:false" json:"rewards_claimed"`
	PiRewardAmount         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"pi_reward_amount"`
	ExperienceRewardAmount int64           `gorm:"not null;default:0" json:"experience_reward_amount"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	User                   User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Quest                  Quest           `gorm:"foreignKey:QuestID" json:"-"`
}

// IsOpen reports whether the quest is still being worked on.
func (uq *UserQuest) IsOpen() bool {
	return uq.Status == UserQuestAccepted || uq.Status == UserQuestInProgress
}

func (uq *UserQuest) IsExpired(now time.Time) bool {
	return uq.ExpiresAt != nil && !now.Before(*uq.ExpiresAt)
}

// CanClaim reports whether ClaimRewards would pay out at now.
func (uq *UserQuest) CanClaim(now time.Time) bool {
	return uq.Status == UserQuestCompleted && !uq.RewardsClaimed && !uq.IsExpired(now)
}
