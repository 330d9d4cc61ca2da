package main

import (
	"context"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/assistant"
	"github.com/xaenox/taskmaster/internal/auth"
	"github.com/xaenox/taskmaster/internal/notifier"
	"github.com/xaenox/taskmaster/internal/reminder"
	"github.com/xaenox/taskmaster/internal/server"
	"github.com/xaenox/taskmaster/internal/storage"
	"github.com/xaenox/taskmaster/internal/task"
	"github.com/xaenox/taskmaster/pkg/config"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	switch cfg.Database.Driver {
	case "memory":
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	case "postgres":
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(cfg.Database)
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.Database.Path))
		store, err = storage.NewSQLiteStorage(cfg.Database.Path)
	}
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	// Initialize the notifier
	var mailer notifier.Notifier
	if cfg.SMTP.Host != "" {
		mailer = notifier.NewSMTPNotifier(cfg.SMTP)
	} else {
		mailer = notifier.NewNoopNotifier(logger)
	}

	// Initialize the assistant
	asst := assistant.New(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)

	// Services
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	authService := auth.NewService(store, mailer, jwtManager, logger)
	taskService := task.NewService(store, logger)

	// Start the reminder engine
	engine := reminder.NewEngine(store, mailer, reminder.Config{
		Interval:    cfg.Reminder.Interval,
		SendTimeout: cfg.Reminder.SendTimeout,
	}, logger)
	if err := engine.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start reminder engine", zap.Error(err))
	}

	// Start the HTTP server
	srv := server.New(cfg.Server, server.Deps{
		Store:     store,
		Auth:      authService,
		JWT:       jwtManager,
		Tasks:     taskService,
		Assistant: asst,
		Engine:    engine,
	}, logger)

	go func() {
		if err := srv.Listen(); err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"reminder-engine": func(ctx context.Context) error {
				engine.Stop()
				return nil
			},
			"storage": func(ctx context.Context) error {
				return store.Close()
			},
		},
	)

	os.Exit(<-wait)
}
