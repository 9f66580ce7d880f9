package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/config"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/models"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/session"
	"github.com/ahmetcoskunkizilkaya/palace-of-quests/internal/store/storetest"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestAdminRequired(t *testing.T) {
	st := storetest.New()
	ctx := context.Background()

	promoted := models.NewUser("uid-promoted", "promoted", decimal.Zero, fixedNow)
	promoted.Role = models.RoleAdmin
	require.NoError(t, st.CreateUser(ctx, promoted))
	player := models.NewUser("uid-player", "player", decimal.Zero, fixedNow)
	require.NoError(t, st.CreateUser(ctx, player))

	cfg := &config.Config{AdminToken: "s3cret"}

	tests := []struct {
		name   string
		sub    string
		role   string
		header string
		want   int
	}{
		{"admin token header", "", "", "s3cret", fiber.StatusOK},
		{"wrong token and no session", "", "", "nope", fiber.StatusUnauthorized},
		{"role claim", uuid.NewString(), models.RoleAdmin, "", fiber.StatusOK},
		{"stored role", promoted.ID.String(), models.RolePlayer, "", fiber.StatusOK},
		{"player", player.ID.String(), models.RolePlayer, "", fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				if tt.sub != "" {
					c.Locals(session.LocalsKey, jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
						"sub":  tt.sub,
						"role": tt.role,
					}))
				}
				return c.Next()
			})
			app.Get("/admin", AdminRequired(st, cfg), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest("GET", "/admin", nil)
			if tt.header != "" {
				req.Header.Set("X-Admin-Token", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}
