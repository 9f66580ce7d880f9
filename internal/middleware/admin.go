package middleware

import (
	"crypto/subtle"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/dto"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/session"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired admits a request when any of these hold:
// 1. X-Admin-Token matches ADMIN_TOKEN
// 2. the JWT role claim is admin
// 3. the user's stored role is admin (covers promotions after token issue)
func AdminRequired(users store.Reader, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" {
			given := c.Get("X-Admin-Token")
			if given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(cfg.AdminToken)) == 1 {
				return c.Next()
			}
		}

		userID, err := session.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: "Unauthorized",
			})
		}

		if session.GetRole(c) == models.RoleAdmin {
			return c.Next()
		}

		if user, err := users.GetUser(c.UserContext(), userID); err == nil && user.Role == models.RoleAdmin {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: "Admin access required",
		})
	}
}
