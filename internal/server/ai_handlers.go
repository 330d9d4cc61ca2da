package server

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/storage"
)

type assistRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func (h *handlers) aiAssist(c *fiber.Ctx) error {
	var req assistRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Title == "" {
		return respondError(c, fiber.StatusBadRequest, "Title is required")
	}

	description, category := h.deps.Assistant.Describe(c.UserContext(), req.Title)
	return c.JSON(fiber.Map{
		"description": description,
		"category":    category,
	})
}

func (h *handlers) aiSuggestion(c *fiber.Ctx) error {
	var req assistRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Title == "" {
		return respondError(c, fiber.StatusBadRequest, "Title is required")
	}
	if req.Status == "" {
		req.Status = "todo"
	}

	suggestion := h.deps.Assistant.Suggest(c.UserContext(), req.Title, req.Description, req.Status)
	return c.JSON(fiber.Map{"suggestion": suggestion})
}

func (h *handlers) aiAnalysis(c *fiber.Ctx) error {
	tasks, err := h.deps.Tasks.List(c.UserContext(), storage.TaskFilter{UserID: currentUserID(c)})
	if err != nil {
		h.logger.Error("Failed to fetch tasks for analysis", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to get analysis")
	}

	analysis := h.deps.Assistant.Analyze(c.UserContext(), tasks)
	return c.JSON(fiber.Map{"analysis": analysis})
}
