package middleware

import (
	"errors"

	"digistore/internal/models"
	"digistore/internal/repositories"
	"digistore/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UserKey is the fiber.Ctx locals key holding the authenticated *models.User.
const UserKey = "user"

// AuthRequired is a Fiber middleware enforcing a valid bearer token. Each
// failure mode gets its own message: missing header, expired token, bad
// token, and a token whose subject no longer exists are distinct 401s.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := services.BearerToken(c.Get("Authorization"))
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header must be 'Bearer <token>'",
			})
		}

		user, err := authService.CurrentUser(token)
		if err != nil {
			message := "Invalid token"
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				message = "Token expired"
			case errors.Is(err, repositories.ErrNotFound):
				message = "User not found"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": message,
			})
		}

		c.Locals(UserKey, user)
		return c.Next()
	}
}

// AdminRequired restricts a route to admin users. Must run after AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil || user.Role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(UserKey).(*models.User)
	return user
}
