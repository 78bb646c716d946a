package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/realityworks/broadcast-app/internal/auth"
	"github.com/realityworks/broadcast-app/internal/middleware"
)

// AuthHandler answers the gateway's ForwardAuth calls
type AuthHandler struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

func NewAuthHandler(verifier auth.TokenVerifier, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// Verify handles GET /auth/verify. On success it returns 200 with the
// X-User-* headers the gateway copies onto the upstream request.
// @Summary      ForwardAuth token check
// @Tags         Auth
// @Success      200
// @Failure      401
// @Security     BearerAuth
// @Router       /auth/verify [get]
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	tokenString := parts[1]

	if h.verifier != nil {
		claims, err := h.verifier.Validate(tokenString)
		if err == nil {
			c.Set(middleware.HeaderUserID, claims.UserID)
			c.Set(middleware.HeaderUserEmail, claims.Email)
			c.Set(middleware.HeaderUserName, claims.Name)
			return c.SendStatus(fiber.StatusOK)
		}
	}

	if h.jwtSecret != "" {
		claims, err := auth.ValidateLegacyToken(tokenString, h.jwtSecret)
		if err == nil {
			c.Set(middleware.HeaderUserID, claims.UserID)
			c.Set(middleware.HeaderUserEmail, claims.Email)
			return c.SendStatus(fiber.StatusOK)
		}
	}

	return c.SendStatus(fiber.StatusUnauthorized)
}
