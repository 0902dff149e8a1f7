package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Health handles GET /health.
func Health(version string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version,
		})
	}
}
