package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/observation-tools/observation-tools/model"
)

// MaxBody enforces a per-route request body limit. The app-level fiber
// BodyLimit is sized for the largest endpoint (blob upload); routes with
// tighter budgets layer this on top.
func MaxBody(limit int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Content-Length only: reading the body here would defeat request
		// streaming, and the app-level limit still bounds chunked bodies.
		if c.Request().Header.ContentLength() > limit {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(model.ErrorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", limit),
			})
		}
		return c.Next()
	}
}
