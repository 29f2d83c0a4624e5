package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/velora-im/velora-chat-api/internal/models"
	"github.com/velora-im/velora-chat-api/internal/utils"
)

// RequireAdmin ensures the authenticated user carries the global admin flag.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, _ := c.Locals("is_admin").(bool)
		if !admin {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireApproved gates chat routes on registration status: only approved
// accounts ever reach the chat surface.
func RequireApproved() fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, _ := c.Locals("user_status").(string)
		if status != models.UserStatusApproved {
			return utils.SendError(c, fiber.StatusForbidden, "account not approved")
		}
		return c.Next()
	}
}
