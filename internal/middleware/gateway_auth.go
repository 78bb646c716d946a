package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/realityworks/broadcast-app/pkg/response"
)

// Identity headers written by the gateway after ForwardAuth
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// GatewayAuthMiddleware trusts the X-User-* headers set by the gateway's
// ForwardAuth call to /auth/verify
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalEmail, c.Get(HeaderUserEmail))
		c.Locals(LocalName, c.Get(HeaderUserName))

		return c.Next()
	}
}
