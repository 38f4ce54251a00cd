// middleware/gateway.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware rejects any request that does not carry the shared
// service token the gateway attaches to proxied calls.
func GatewayAuthMiddleware() fiber.Handler {
	expected := os.Getenv("CRM_SERVICE_TOKEN")
	if expected == "" {
		log.Fatal("❌ CRM_SERVICE_TOKEN is not set, refusing to start unauthenticated")
	}

	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			log.Printf("🚫 [GATEWAY_AUTH] %s %s rejected: no Authorization header", c.Method(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing service token",
			})
		}

		// The gateway sends "Bearer <token>"; accept a bare token too.
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			token = header
		}

		if token != expected {
			log.Printf("❌ [GATEWAY_AUTH] %s %s rejected: token mismatch", c.Method(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid service token",
			})
		}

		return c.Next()
	}
}
