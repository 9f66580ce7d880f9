package handlers

import (
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type QuestHandler struct {
	quests *services.QuestService
}

func NewQuestHandler(quests *services.QuestService) *QuestHandler {
	return &QuestHandler{quests: quests}
}

// userAndQuest resolves the caller and the :id quest param.
func userAndQuest(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := currentUser(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	questID, err := paramUUID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, questID, nil
}

func (h *QuestHandler) List(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	quests, err := h.quests.ListAvailable(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "quests": quests, "total": len(quests)})
}

func (h *QuestHandler) ListMine(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var q dto.MyQuestsQuery
	if err := parseQuery(c, &q); err != nil {
		return respondError(c, err)
	}
	quests, err := h.quests.ListMine(c.UserContext(), userID, models.UserQuestStatus(q.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "quests": quests, "total": len(quests)})
}

func (h *QuestHandler) Accept(c *fiber.Ctx) error {
	userID, questID, err := userAndQuest(c)
	if err != nil {
		return respondError(c, err)
	}
	uq, err := h.quests.Accept(c.UserContext(), userID, questID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"message":    "Quest accepted",
		"user_quest": uq,
	})
}

func (h *QuestHandler) UpdateProgress(c *fiber.Ctx) error {
	userID, questID, err := userAndQuest(c)
	if err != nil {
		return respondError(c, err)
	}
	var req dto.ProgressRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	res, err := h.quests.UpdateProgress(c.UserContext(), userID, questID, services.ProgressInput{
		Increment:      req.Progress,
		CompletionData: req.CompletionData,
		EventID:        req.EventID,
	})
	if err != nil {
		return respondError(c, err)
	}

	percent := 0.0
	if res.MaxProgress > 0 {
		percent = min(float64(res.Progress.CurrentProgress)/float64(res.MaxProgress)*100, 100)
	}
	return c.JSON(fiber.Map{
		"success":             true,
		"current_progress":    res.Progress.CurrentProgress,
		"max_progress":        res.MaxProgress,
		"progress_percentage": percent,
		"quest_completed":     res.Progress.IsCompleted,
		"newly_completed":     res.Completed,
		"duplicate":           res.Duplicate,
		"status":              res.UserQuest.Status,
	})
}

func (h *QuestHandler) ClaimRewards(c *fiber.Ctx) error {
	userID, questID, err := userAndQuest(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.quests.ClaimRewards(c.UserContext(), userID, questID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":           true,
		"message":           "Rewards claimed",
		"pi_reward":         res.PiReward,
		"experience_reward": res.ExperienceReward,
		"leveled_up":        res.LeveledUp,
		"new_level":         res.User.Level,
		"new_balance":       res.User.Balance,
		"transaction_id":    res.Transaction.ID,
	})
}

func (h *QuestHandler) Abandon(c *fiber.Ctx) error {
	userID, questID, err := userAndQuest(c)
	if err != nil {
		return respondError(c, err)
	}
	uq, err := h.quests.Abandon(c.UserContext(), userID, questID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Quest abandoned", "user_quest": uq})
}

func (h *QuestHandler) GetProgress(c *fiber.Ctx) error {
	userID, questID, err := userAndQuest(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := h.quests.GetProgress(c.UserContext(), userID, questID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"quest":      view.Quest,
		"user_quest": view.UserQuest,
		"progress":   view.Progress,
	})
}

// Create is admin only.
func (h *QuestHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateQuestRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	quest := req.ToModel()
	if err := h.quests.CreateQuest(c.UserContext(), quest); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "quest": quest})
}

func (h *QuestHandler) SetActive(c *fiber.Ctx) error {
	questID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.SetActiveRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := h.quests.SetActive(c.UserContext(), questID, *req.IsActive); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "id": questID, "is_active": *req.IsActive})
}
