package dto

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const maxProgressIncrement = 10000

type ProgressRequest struct {
	Progress       int            `json:"progress"`
	CompletionData map[string]any `json:"completion_data"`
	EventID        string         `json:"event_id"`
}

func (r *ProgressRequest) Validate() error {
	var v ValidationErrors
	if r.Progress <= 0 || r.Progress > maxProgressIncrement {
		v.Add("progress must be between 1 and 10000")
	}
	if len(r.EventID) > 100 {
		v.Add("event_id must be at most 100 characters")
	}
	return v.Err()
}

type MyQuestsQuery struct {
	Status string `query:"status"`
}

// Validate maps "all" to the empty filter.
func (q *MyQuestsQuery) Validate() error {
	if q.Status == "all" {
		q.Status = ""
	}
	if q.Status != "" && !oneOf(q.Status, models.UserQuestStatuses) {
		return &ValidationErrors{Messages: []string{
			"status must be one of all, " + strings.Join(models.UserQuestStatuses, ", "),
		}}
	}
	return nil
}

type CreateQuestRequest struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Difficulty       string          `json:"difficulty"`
	QuestType        string          `json:"quest_type"`
	LevelRequirement int             `json:"level_requirement"`
	PiReward         decimal.Decimal `json:"pi_reward"`
	ExperienceReward int64           `json:"experience_reward"`
	Objectives       []string        `json:"objectives"`
	MaxProgress      int             `json:"max_progress"`
	IsRepeatable     bool            `json:"is_repeatable"`
	CooldownHours    int             `json:"cooldown_hours"`
}

func (r *CreateQuestRequest) Validate() error {
	var v ValidationErrors
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" || len(r.Title) > 100 {
		v.Add("title is required and must be at most 100 characters")
	}
	if strings.TrimSpace(r.Description) == "" {
		v.Add("description is required")
	}
	if r.Difficulty == "" {
		r.Difficulty = "Easy"
	}
	if !oneOf(r.Difficulty, models.QuestDifficulties) {
		v.Add("difficulty must be one of " + strings.Join(models.QuestDifficulties, ", "))
	}
	if r.QuestType == "" {
		r.QuestType = "tutorial"
	}
	if !oneOf(r.QuestType, models.QuestTypes) {
		v.Add("quest_type must be one of " + strings.Join(models.QuestTypes, ", "))
	}
	if r.LevelRequirement == 0 {
		r.LevelRequirement = 1
	}
	if r.LevelRequirement < 1 {
		v.Add("level_requirement must be at least 1")
	}
	if r.PiReward.IsNegative() {
		v.Add("pi_reward must not be negative")
	}
	if !r.PiReward.Equal(r.PiReward.Round(2)) {
		v.Add("pi_reward must have at most 2 decimal places")
	}
	if r.ExperienceReward < 0 {
		v.Add("experience_reward must not be negative")
	}
	if r.MaxProgress == 0 {
		r.MaxProgress = 1
	}
	if r.MaxProgress < 1 {
		v.Add("max_progress must be at least 1")
	}
	if r.CooldownHours < 0 {
		v.Add("cooldown_hours must not be negative")
	}
	return v.Err()
}

func (r *CreateQuestRequest) ToModel() *models.Quest {
	return &models.Quest{
		Title:            r.Title,
		Description:      r.Description,
		Difficulty:       r.Difficulty,
		QuestType:        r.QuestType,
		LevelRequirement: r.LevelRequirement,
		PiReward:         r.PiReward,
		ExperienceReward: r.ExperienceReward,
		Objectives:       datatypes.JSONSlice[string](r.Objectives),
		MaxProgress:      r.MaxProgress,
		IsActive:         true,
		IsRepeatable:     r.IsRepeatable,
		CooldownHours:    r.CooldownHours,
	}
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (r *SetActiveRequest) Validate() error {
	var v ValidationErrors
	if r.IsActive == nil {
		v.Add("is_active is required")
	}
	return v.Err()
}
