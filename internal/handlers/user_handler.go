package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/services"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	user, err := h.users.Profile(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": dto.NewUserResponse(user, time.Now())})
}

func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := h.users.UpdateProfile(c.UserContext(), userID, services.ProfileUpdate{
		Username:       req.Username,
		Email:          req.Email,
		AvatarURL:      req.AvatarURL,
		AvatarUpgrades: req.AvatarUpgrades,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"user":    dto.NewUserResponse(user, time.Now()),
	})
}

func (h *UserHandler) Stats(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	stats, err := h.users.Stats(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}

// Leaderboard is public.
func (h *UserHandler) Leaderboard(c *fiber.Ctx) error {
	var q dto.LeaderboardQuery
	if err := parseQuery(c, &q); err != nil {
		return respondError(c, err)
	}

	page, err := h.users.Leaderboard(c.UserContext(), store.LeaderboardSort(q.SortBy), q.Page, q.PerPage)
	if err != nil {
		return respondError(c, err)
	}

	offset := (max(q.Page, 1) - 1) * perPageOrDefault(q.PerPage)
	entries := make([]fiber.Map, 0, len(page.Users))
	for i, u := range page.Users {
		entries = append(entries, fiber.Map{
			"rank":       offset + i + 1,
			"id":         u.ID,
			"username":   u.Username,
			"level":      u.Level,
			"experience": u.Experience,
			"pi_balance": u.Balance,
			"avatar_url": u.AvatarURL,
		})
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"leaderboard": entries,
		"sort_by":     q.SortBy,
		"pagination":  pagination(q.Page, q.PerPage, page.Total),
	})
}

func (h *UserHandler) SubscribePremium(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.users.SubscribePremium(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":            true,
		"message":            "Premium activated",
		"premium_expires_at": res.User.PremiumExpiresAt,
		"pi_balance":         res.User.Balance,
		"transaction":        res.Transaction,
	})
}

const defaultPerPage = 20

func perPageOrDefault(perPage int) int {
	if perPage <= 0 {
		return defaultPerPage
	}
	return perPage
}

func pagination(page, perPage int, total int64) fiber.Map {
	page = max(page, 1)
	perPage = perPageOrDefault(perPage)
	pages := (total + int64(perPage) - 1) / int64(perPage)
	return fiber.Map{
		"page":     page,
		"per_page": perPage,
		"total":    total,
		"pages":    pages,
		"has_next": int64(page) < pages,
		"has_prev": page > 1,
	}
}
