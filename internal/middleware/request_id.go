package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on both request and response.
const RequestIDHeader = "X-Request-ID"

const requestIDLocal = "requestID"

// RequestID assigns each request an id, reusing the caller's when
// present.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDHeader, requestID)
		c.Locals(requestIDLocal, requestID)

		return c.Next()
	}
}

// GetRequestID returns the request id assigned by RequestID.
func GetRequestID(c *fiber.Ctx) string {
	if requestID, ok := c.Locals(requestIDLocal).(string); ok {
		return requestID
	}
	return ""
}
