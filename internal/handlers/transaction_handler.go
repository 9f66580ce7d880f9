package handlers

import (
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	txs *services.TransactionService
}

func NewTransactionHandler(txs *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{txs: txs}
}

func (h *TransactionHandler) History(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var q dto.HistoryQuery
	if err := parseQuery(c, &q); err != nil {
		return respondError(c, err)
	}

	page, err := h.txs.History(c.UserContext(), userID, services.HistoryQuery{
		Type:    models.TransactionType(q.Type),
		Status:  models.TransactionStatus(q.Status),
		Days:    q.Days,
		Page:    q.Page,
		PerPage: q.PerPage,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"transactions": page.Transactions,
		"pagination":   pagination(q.Page, q.PerPage, page.Total),
	})
}

func (h *TransactionHandler) Summary(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	sum, err := h.txs.Summary(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "summary": sum})
}

func (h *TransactionHandler) Detail(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	detail, err := h.txs.Detail(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, err)
	}

	out := fiber.Map{"success": true, "transaction": detail.Transaction}
	if detail.Quest != nil {
		out["quest"] = fiber.Map{
			"id":         detail.Quest.ID,
			"title":      detail.Quest.Title,
			"difficulty": detail.Quest.Difficulty,
		}
	}
	if detail.Item != nil {
		out["item"] = fiber.Map{
			"id":        detail.Item.ID,
			"name":      detail.Item.Name,
			"rarity":    detail.Item.Rarity,
			"item_type": detail.Item.ItemType,
		}
	}
	return c.JSON(out)
}
