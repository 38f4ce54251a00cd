package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayApp(t *testing.T) *fiber.App {
	t.Helper()
	t.Setenv("CRM_SERVICE_TOKEN", "s3cret")

	app := fiber.New()
	app.Use(GatewayAuthMiddleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	return app
}

func TestGatewayAuthRejectsMissingHeader(t *testing.T) {
	app := newGatewayApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayAuthRejectsWrongToken(t *testing.T) {
	app := newGatewayApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayAuthAcceptsBearerAndBareToken(t *testing.T) {
	app := newGatewayApp(t)

	for _, header := range []string{"Bearer s3cret", "s3cret"} {
		req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", header)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, header)
	}
}
