package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfTestApp() *fiber.App {
	app := fiber.New()
	app.Use(CSRF())
	app.Get("/page", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Post("/action", func(c *fiber.Ctx) error { return c.SendString("done") })
	return app
}

func csrfCookie(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == CSRFCookieName {
			return cookie.Value
		}
	}
	return ""
}

func TestCSRFCookieSetOnGet(t *testing.T) {
	app := csrfTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/page", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, csrfCookie(t, resp))
}

func TestCSRFProgrammaticClientsBypass(t *testing.T) {
	app := csrfTestApp()

	// No cookie at all: the check is skipped.
	resp, err := app.Test(httptest.NewRequest("POST", "/action", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCSRFRejectsMismatchedToken(t *testing.T) {
	app := csrfTestApp()

	get, err := app.Test(httptest.NewRequest("GET", "/page", nil))
	require.NoError(t, err)
	token := csrfCookie(t, get)
	require.NotEmpty(t, token)

	// Cookie present but header missing.
	req := httptest.NewRequest("POST", "/action", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Cookie present but header wrong.
	req = httptest.NewRequest("POST", "/action", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
	req.Header.Set(CSRFHeaderName, "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCSRFAcceptsMatchingToken(t *testing.T) {
	app := csrfTestApp()

	get, err := app.Test(httptest.NewRequest("GET", "/page", nil))
	require.NoError(t, err)
	token := csrfCookie(t, get)

	req := httptest.NewRequest("POST", "/action", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
	req.Header.Set(CSRFHeaderName, token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
