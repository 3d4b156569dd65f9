package api

import (
	"strings"

	"github.com/MossTheFox/coursework-jtodo-server/modules/auth"
	"github.com/gofiber/fiber/v2"
)

// UserContextKey is the key used to store user claims in the Fiber context.
const UserContextKey = "user"

// AuthMiddleware creates a middleware that validates bearer session tokens.
// No mutation is ever attempted on an unauthenticated request.
func AuthMiddleware(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(StatusResponse{
				Code:    "error",
				Message: "Authorization header is required",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(StatusResponse{
				Code:    "error",
				Message: "Invalid authorization header format. Use: Bearer <token>",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(StatusResponse{
				Code:    "error",
				Message: "Token is required",
			})
		}

		claims, err := authAdapter.ValidateToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(StatusResponse{
				Code:    "error",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(UserContextKey, claims)
		return c.Next()
	}
}
