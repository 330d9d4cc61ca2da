package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/models"
	"github.com/xaenox/taskmaster/internal/storage"
)

const (
	chatTaskContextLimit = 20
	chatHistoryLimit     = 50
)

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// postChat runs one assistant exchange: answer the message in the context of
// the user's recent tasks, apply whatever actions the assistant proposed
// (each one independently, malformed ones dropped) and append the chat row.
// The exchange is scoped to the bearer token's user; the body's userId is
// only consulted when the token carries none.
func (h *handlers) postChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	userID := currentUserID(c)
	if userID == "" {
		userID = req.UserID
	}
	if userID == "" || req.Message == "" {
		return respondError(c, fiber.StatusBadRequest, "userId and message are required")
	}

	ctx := c.UserContext()

	if _, err := h.deps.Store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return respondError(c, fiber.StatusNotFound, "User not found")
		}
		h.logger.Error("Failed to fetch user", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Chat failed")
	}

	tasks, err := h.deps.Tasks.List(ctx, storage.TaskFilter{UserID: userID})
	if err != nil {
		h.logger.Error("Failed to fetch tasks for chat context", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Chat failed")
	}
	if len(tasks) > chatTaskContextLimit {
		tasks = tasks[:chatTaskContextLimit]
	}

	result := h.deps.Assistant.Chat(ctx, req.Message, tasks)
	executed := h.deps.Tasks.ApplyActions(ctx, userID, result.Actions)

	chat := &models.Chat{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   req.Message,
		Response:  result.Response,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.deps.Store.SaveChat(ctx, chat); err != nil {
		h.logger.Error("Failed to save chat", zap.Error(err), zap.String("user_id", userID))
		return respondError(c, fiber.StatusInternalServerError, "Chat failed")
	}

	return c.JSON(fiber.Map{
		"id":              chat.ID,
		"message":         chat.Message,
		"response":        chat.Response,
		"timestamp":       chat.CreatedAt,
		"actionsExecuted": executed,
	})
}

func (h *handlers) listChats(c *fiber.Ctx) error {
	chats, err := h.deps.Store.ListChats(c.UserContext(), c.Params("userId"), chatHistoryLimit)
	if err != nil {
		h.logger.Error("Failed to fetch chats", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to fetch chats")
	}
	return c.JSON(chats)
}
