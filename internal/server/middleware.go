package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const localUserID = "userID"

// requireAuth validates the bearer token and stores the caller's user id in
// the request locals.
func (h *handlers) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return respondError(c, fiber.StatusUnauthorized, "Missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return respondError(c, fiber.StatusUnauthorized, "Invalid authorization header")
	}

	claims, err := h.deps.JWT.Validate(parts[1])
	if err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals(localUserID, claims.UserID)
	return c.Next()
}

func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}
