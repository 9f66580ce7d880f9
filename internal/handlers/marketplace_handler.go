package handlers

import (
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/gofiber/fiber/v2"
)

type MarketplaceHandler struct {
	market *services.MarketplaceService
}

func NewMarketplaceHandler(market *services.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{market: market}
}

func (h *MarketplaceHandler) ListItems(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var q dto.ItemQuery
	if err := parseQuery(c, &q); err != nil {
		return respondError(c, err)
	}

	page, err := h.market.ListItems(c.UserContext(), userID, store.ItemFilter{
		ItemType: q.Type,
		Rarity:   q.Rarity,
		MinLevel: q.MinLevel,
		MaxLevel: q.MaxLevel,
		SortBy:   q.SortBy,
		Page:     q.Page,
		PerPage:  q.PerPage,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"items":      page.Items,
		"pagination": pagination(q.Page, q.PerPage, page.Total),
	})
}

func (h *MarketplaceHandler) Purchase(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	itemID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	res, err := h.market.PurchaseItem(c.UserContext(), userID, itemID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Purchased " + res.Item.Name,
		"item":        res.Item,
		"transaction": res.Transaction,
		"new_balance": res.NewBalance,
	})
}

func (h *MarketplaceHandler) Categories(c *fiber.Ctx) error {
	cats, err := h.market.Categories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "categories": cats})
}

func (h *MarketplaceHandler) Featured(c *fiber.Ctx) error {
	items, err := h.market.Featured(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "featured_items": items})
}

func (h *MarketplaceHandler) Inventory(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	inv, err := h.market.Inventory(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "inventory": inv})
}

func (h *MarketplaceHandler) CreateItem(c *fiber.Ctx) error {
	var req dto.CreateItemRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	item := req.ToModel()
	if err := h.market.CreateItem(c.UserContext(), item); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "item": item})
}

func (h *MarketplaceHandler) SetAvailability(c *fiber.Ctx) error {
	itemID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req dto.AvailabilityRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := h.market.SetAvailability(c.UserContext(), itemID, *req.IsAvailable); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "id": itemID, "is_available": *req.IsAvailable})
}
