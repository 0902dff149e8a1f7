// Package middleware contains the fiber middleware stack of the
// observation-tools server.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/observation-tools/observation-tools/internal/auth"
	"github.com/observation-tools/observation-tools/model"
)

// RequireAPIKey validates the shared-secret API key on mutating
// endpoints. With an empty secret authentication is disabled and every
// request passes. Read-only routes never carry this middleware.
func RequireAPIKey(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		token, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(model.ErrorResponse{
				Error: "missing Authorization header",
			})
		}
		if err := auth.ValidateKey(token, secret); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(model.ErrorResponse{
				Error: "invalid API key",
			})
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", false
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	return token, true
}
