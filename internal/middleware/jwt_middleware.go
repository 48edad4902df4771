package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ecostore/internal/services"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}
		return authenticate(c, authService)
	}
}

// OptionalAuth lets anonymous shoppers through but rejects a token that is
// present and invalid, so a stale session is noticed by the storefront.
func OptionalAuth(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return authenticate(c, authService)
	}
}

// RegistrationKeyHeader carries the bootstrap key for creating the first
// admin account.
const RegistrationKeyHeader = "X-Registration-Key"

// RegistrationAllowed admits a request from a signed-in admin, or one
// carrying the configured registration key. An empty key leaves only the
// first path open.
func RegistrationAllowed(authService *services.AuthService, registrationKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "" {
			return authenticate(c, authService)
		}
		presented := c.Get(RegistrationKeyHeader)
		if registrationKey != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(registrationKey)) == 1 {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Registration requires an admin token or the registration key",
		})
	}
}

func authenticate(c *fiber.Ctx, authService *services.AuthService) error {
	// Expected format: "Bearer <token>"
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authorization header format must be 'Bearer <token>'",
		})
	}

	claims, err := authService.ValidateToken(parts[1])
	if err != nil {
		log.Printf("JWT validation failed: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid or expired token",
			"error":   err.Error(),
		})
	}

	c.Locals("user_id", claims["user_id"])
	c.Locals("username", claims["username"])
	return c.Next()
}
