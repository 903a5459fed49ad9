package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/crmsync/internal/services"
	"github.com/localnerve/crmsync/internal/types"
)

// AuthUser validates the bearer token and stores the user id in c.Locals("uid")
func AuthUser(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, secret, "docs.authorization.user")
	}
}

// authorize performs the authorization check
func authorize(c *fiber.Ctx, secret, errorType string) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: "Bearer token not found",
			Type:    errorType,
		}
	}

	claims, err := services.ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: fmt.Sprintf("Invalid token: %v", err),
			Type:    errorType,
		}
	}

	c.Locals("uid", claims.Subject)
	c.Locals("userName", claims.Name)

	return c.Next()
}
