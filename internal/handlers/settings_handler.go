package handlers

import (
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetConfig returns every game setting decoded by type (public).
func (h *SettingsHandler) GetConfig(c *fiber.Ctx) error {
	result, err := h.settings.All(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// SetConfigKey sets or updates a key (admin only).
func (h *SettingsHandler) SetConfigKey(c *fiber.Ctx) error {
	key := c.Params("key")
	var req dto.SetSettingRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	gs, err := h.settings.Set(c.UserContext(), key, req.Value, req.Type)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Config updated successfully",
		"config": fiber.Map{
			"key":   gs.Key,
			"value": gs.Value,
			"type":  gs.Type,
		},
	})
}

func (h *SettingsHandler) DeleteConfigKey(c *fiber.Ctx) error {
	if err := h.settings.Delete(c.UserContext(), c.Params("key")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Config deleted successfully",
	})
}
