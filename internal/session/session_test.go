package session

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserID(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		token   *jwt.Token
		wantErr bool
		role    string
	}{
		{"valid", jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": id.String(), "role": "admin"}), false, "admin"},
		{"missing sub", jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{}), true, ""},
		{"bad uuid", jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "nope"}), true, ""},
		{"no token", nil, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				if tt.token != nil {
					c.Locals(LocalsKey, tt.token)
				}
				got, err := GetUserID(c)
				if tt.wantErr {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
					assert.Equal(t, id, got)
				}
				assert.Equal(t, tt.role, GetRole(c))
				return c.SendStatus(fiber.StatusNoContent)
			})
			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		})
	}
}
