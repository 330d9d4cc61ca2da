package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// listReminders reports, per task with a reminder configured, whether it is
// upcoming and whether it has been sent. Read-only.
func (h *handlers) listReminders(c *fiber.Ctx) error {
	userID := c.Query("userId")
	if userID == "" {
		userID = currentUserID(c)
	}

	statuses, err := h.deps.Store.ReminderStatuses(c.UserContext(), userID, time.Now().UTC())
	if err != nil {
		h.logger.Error("Failed to fetch reminder statuses", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to fetch reminders")
	}

	return c.JSON(statuses)
}

// runReminders triggers the reminder scan for the calling user's tasks.
// It shares the periodic tick's code path, so eligibility and failure
// handling are identical.
func (h *handlers) runReminders(c *fiber.Ctx) error {
	report, err := h.deps.Engine.RunForUser(c.UserContext(), currentUserID(c), time.Now().UTC())
	if err != nil {
		h.logger.Error("On-demand reminder run failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to run reminders")
	}

	return c.JSON(report)
}
