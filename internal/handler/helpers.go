// Package handler implements the HTTP API endpoints.
package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/observation-tools/observation-tools/internal/pkg/errors"
	"github.com/observation-tools/observation-tools/model"
)

// DefaultListLimit applies when a list endpoint gets no limit parameter.
const DefaultListLimit = 100

// Pagination holds the limit/offset query parameters of list endpoints.
type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination extracts limit and offset with validation.
func ParsePagination(c *fiber.Ctx) Pagination {
	p := Pagination{
		Limit:  parseQueryInt(c, "limit", DefaultListLimit),
		Offset: parseQueryInt(c, "offset", 0),
	}
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func parseQueryInt(c *fiber.Ctx, key string, defaultValue int) int {
	val := c.Query(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// errorResponse sends the standard {"error": ...} body.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(model.ErrorResponse{Error: message})
}

// respondError maps a service error to its HTTP response, logging
// internal failures at error and client mistakes at warn.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		logger.Error("request failed", zap.Error(err), zap.String("path", c.Path()))
		return errorResponse(c, fiber.StatusInternalServerError, "internal server error")
	}

	switch {
	case appErr.StatusCode >= 500:
		logger.Error("request failed", zap.Error(err), zap.String("path", c.Path()))
	default:
		logger.Warn("request rejected", zap.Error(err), zap.String("path", c.Path()))
	}
	return errorResponse(c, appErr.StatusCode, appErr.Message)
}
