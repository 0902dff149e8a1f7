package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/gofiber/fiber/v2"

	"github.com/observation-tools/observation-tools/model"
)

const (
	// CSRFCookieName is the double-submit cookie.
	CSRFCookieName = "csrf_token"

	// CSRFHeaderName must echo the cookie on unsafe methods.
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenLength = 32
)

// CSRF implements the double-submit cookie pattern. Safe methods receive
// a random csrf_token cookie; unsafe methods must echo it in the
// X-CSRF-Token header. Requests without the cookie (programmatic clients
// that never loaded a page) bypass the check entirely, which keeps the
// API usable without sessions while still protecting browser flows.
func CSRF() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions, fiber.MethodTrace:
			if c.Cookies(CSRFCookieName) == "" {
				setCSRFCookie(c, generateCSRFToken())
			}
			return c.Next()
		}

		cookie := c.Cookies(CSRFCookieName)
		if cookie == "" {
			return c.Next()
		}

		header := c.Get(CSRFHeaderName)
		if header == "" || subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(model.ErrorResponse{
				Error: "invalid or missing CSRF token",
			})
		}
		return c.Next()
	}
}

func generateCSRFToken() string {
	buf := make([]byte, csrfTokenLength)
	if _, err := rand.Read(buf); err != nil {
		panic("csrf: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func setCSRFCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		SameSite: "Strict",
	})
}
