// Package server exposes the REST API.
package server

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/assistant"
	"github.com/xaenox/taskmaster/internal/auth"
	"github.com/xaenox/taskmaster/internal/models"
	"github.com/xaenox/taskmaster/internal/reminder"
	"github.com/xaenox/taskmaster/internal/storage"
	"github.com/xaenox/taskmaster/internal/task"
	"github.com/xaenox/taskmaster/pkg/config"
)

// Assistant is the AI collaborator behind the chat and ai route groups.
// *assistant.Assistant satisfies it; tests script replies with a fake.
type Assistant interface {
	Chat(ctx context.Context, message string, tasks []*models.Task) assistant.ChatResult
	Describe(ctx context.Context, title string) (description, category string)
	Suggest(ctx context.Context, title, description, status string) string
	Analyze(ctx context.Context, tasks []*models.Task) string
}

// Deps are the collaborators the handlers need. Everything is injected so
// tests can swap in the in-memory store and fakes.
type Deps struct {
	Store     storage.Storage
	Auth      *auth.Service
	JWT       *auth.JWTManager
	Tasks     *task.Service
	Assistant Assistant
	Engine    *reminder.Engine
}

type Server struct {
	app    *fiber.App
	addr   string
	logger *zap.Logger
}

func New(cfg config.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "taskmaster",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	h := &handlers{deps: deps, logger: logger}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authGroup := app.Group("/auth")
	authGroup.Post("/register", h.register)
	authGroup.Post("/login", h.login)
	authGroup.Post("/verify", h.verifyEmail)
	authGroup.Post("/resend-verification", h.resendVerification)
	authGroup.Post("/forgot-password", h.forgotPassword)
	authGroup.Post("/reset-password", h.resetPassword)
	authGroup.Get("/user/:id", h.getUser)

	tasks := app.Group("/tasks", h.requireAuth)
	tasks.Get("/", h.listTasks)
	tasks.Post("/", h.createTask)
	tasks.Get("/:id", h.getTask)
	tasks.Put("/:id", h.updateTask)
	tasks.Delete("/:id", h.deleteTask)

	chat := app.Group("/chat", h.requireAuth)
	chat.Post("/", h.postChat)
	chat.Get("/:userId", h.listChats)

	ai := app.Group("/ai", h.requireAuth)
	ai.Post("/assist", h.aiAssist)
	ai.Post("/suggestion", h.aiSuggestion)
	ai.Get("/analysis", h.aiAnalysis)

	reminders := app.Group("/reminders", h.requireAuth)
	reminders.Get("/", h.listReminders)
	reminders.Post("/run", h.runReminders)

	return &Server{
		app:    app,
		addr:   fmt.Sprintf(":%d", cfg.Port),
		logger: logger,
	}
}

func (s *Server) Listen() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.addr))
	return s.app.Listen(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(errorResponse{Error: msg})
}
