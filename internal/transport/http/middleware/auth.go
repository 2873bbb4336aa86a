package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/tubesum/backend/internal/config"
)

// APIKeyAuth requires cfg.Auth.APIKey in X-API-Key or a bearer token. It is
// a no-op when no key is configured.
func APIKeyAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := cfg.Auth.APIKey
		if apiKey == "" {
			return c.Next()
		}

		token := c.Get("X-API-Key")
		if token == "" {
			if bearer, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok {
				token = bearer
			}
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		return c.Next()
	}
}
