package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observation-tools/observation-tools/internal/auth"
)

func authTestApp(secret string) *fiber.App {
	app := fiber.New()
	app.Post("/mutate", RequireAPIKey(secret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{})
	})
	return app
}

func TestRequireAPIKeyDisabledWithoutSecret(t *testing.T) {
	app := authTestApp("")

	req := httptest.NewRequest("POST", "/mutate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAPIKeyRejectsMissingHeader(t *testing.T) {
	app := authTestApp("S")

	resp, err := app.Test(httptest.NewRequest("POST", "/mutate", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAPIKeyRejectsBadKey(t *testing.T) {
	app := authTestApp("S")

	req := httptest.NewRequest("POST", "/mutate", nil)
	req.Header.Set("Authorization", "Bearer obs_bogus")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// A key minted under a different secret fails too.
	other, err := auth.GenerateKey("other-secret")
	require.NoError(t, err)
	req = httptest.NewRequest("POST", "/mutate", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAPIKeyAcceptsValidKey(t *testing.T) {
	app := authTestApp("S")

	key, err := auth.GenerateKey("S")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/mutate", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
