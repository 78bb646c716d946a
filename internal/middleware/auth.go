package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/realityworks/broadcast-app/internal/auth"
	"github.com/realityworks/broadcast-app/pkg/response"
)

// Locals keys set by the auth middlewares
const (
	LocalUserID = "userId"
	LocalEmail  = "email"
	LocalName   = "name"
	LocalClaims = "claims"
)

// AuthMiddleware authenticates bearer tokens, trying the OIDC verifier
// first and the legacy HMAC secret second
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

// NewAuthMiddleware accepts only tokens issued by the OIDC provider
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// NewAuthMiddlewareWithFallback accepts OIDC tokens and legacy HMAC tokens
func NewAuthMiddlewareWithFallback(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, jwtSecret: jwtSecret}
}

// NewLegacyAuthMiddleware accepts only HMAC tokens signed with jwtSecret
func NewLegacyAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// Authenticate validates the Authorization header and stores the caller's
// identity in the request locals
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			if c.Get(fiber.HeaderAuthorization) == "" {
				return response.Unauthorized(c, "Missing authorization header")
			}
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		if m.verifier != nil {
			claims, err := m.verifier.Validate(tokenString)
			if err == nil {
				c.Locals(LocalUserID, claims.UserID)
				c.Locals(LocalEmail, claims.Email)
				c.Locals(LocalName, claims.Name)
				c.Locals(LocalClaims, claims)
				return c.Next()
			}
			if m.jwtSecret == "" {
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			c.Locals(LocalUserID, claims.UserID)
			c.Locals(LocalEmail, claims.Email)
			c.Locals(LocalClaims, claims)
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID returns the authenticated user, or "" on unauthenticated routes
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals(LocalUserID).(string); ok {
		return userID
	}
	return ""
}

func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals(LocalEmail).(string); ok {
		return email
	}
	return ""
}

func GetUserName(c *fiber.Ctx) string {
	if name, ok := c.Locals(LocalName).(string); ok {
		return name
	}
	return ""
}
