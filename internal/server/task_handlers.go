package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/storage"
	"github.com/xaenox/taskmaster/internal/task"
)

type createTaskRequest struct {
	UserID       string     `json:"userId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"dueDate"`
	ReminderDate *time.Time `json:"reminderDate"`
	Category     string     `json:"category"`
}

type updateTaskRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Priority     *string    `json:"priority"`
	Status       *string    `json:"status"`
	DueDate      *time.Time `json:"dueDate"`
	ReminderDate *time.Time `json:"reminderDate"`
	Category     *string    `json:"category"`
}

func (h *handlers) listTasks(c *fiber.Ctx) error {
	filter := storage.TaskFilter{
		UserID:   c.Query("userId"),
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Priority: c.Query("priority"),
	}

	tasks, err := h.deps.Tasks.List(c.UserContext(), filter)
	if err != nil {
		h.logger.Error("Failed to fetch tasks", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to fetch tasks")
	}

	return c.JSON(tasks)
}

func (h *handlers) createTask(c *fiber.Ctx) error {
	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	created, err := h.deps.Tasks.Create(c.UserContext(), task.CreateInput{
		UserID:       req.UserID,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Status:       req.Status,
		DueDate:      req.DueDate,
		ReminderDate: req.ReminderDate,
		Category:     req.Category,
	})
	if errors.Is(err, task.ErrTitleRequired) {
		return respondError(c, fiber.StatusBadRequest, "Title is required")
	}
	if errors.Is(err, task.ErrOwnerNotFound) {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		h.logger.Error("Failed to create task", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to create task")
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handlers) getTask(c *fiber.Ctx) error {
	found, err := h.deps.Tasks.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return respondError(c, fiber.StatusNotFound, "Task not found")
	}
	if err != nil {
		h.logger.Error("Failed to fetch task", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to fetch task")
	}

	return c.JSON(found)
}

func (h *handlers) updateTask(c *fiber.Ctx) error {
	var req updateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	updated, err := h.deps.Tasks.Update(c.UserContext(), c.Params("id"), task.UpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		Status:       req.Status,
		DueDate:      req.DueDate,
		ReminderDate: req.ReminderDate,
		Category:     req.Category,
	})
	if errors.Is(err, storage.ErrNotFound) {
		return respondError(c, fiber.StatusNotFound, "Task not found")
	}
	if err != nil {
		h.logger.Error("Failed to update task", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to update task")
	}

	return c.JSON(updated)
}

func (h *handlers) deleteTask(c *fiber.Ctx) error {
	if err := h.deps.Tasks.Delete(c.UserContext(), c.Params("id")); err != nil {
		h.logger.Error("Failed to delete task", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to delete task")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
