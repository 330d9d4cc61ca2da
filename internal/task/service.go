// Package task implements CRUD over tasks and the applier for assistant
// proposed actions.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/models"
	"github.com/xaenox/taskmaster/internal/storage"
)

var (
	// ErrTitleRequired is returned when a task is created without a title.
	ErrTitleRequired = errors.New("title is required")
	// ErrOwnerNotFound is returned when the referenced owning user does
	// not exist.
	ErrOwnerNotFound = errors.New("owner not found")
)

type Service struct {
	store  storage.Storage
	logger *zap.Logger
}

func NewService(store storage.Storage, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

type CreateInput struct {
	UserID       string
	Title        string
	Description  string
	Priority     string
	Status       string
	DueDate      *time.Time
	ReminderDate *time.Time
	Category     string
	AISuggestion string
}

type UpdateInput struct {
	Title        *string
	Description  *string
	Priority     *string
	Status       *string
	DueDate      *time.Time
	ReminderDate *time.Time
	Category     *string
	AISuggestion *string
}

// Create validates the input, fills defaults and stores the task. An owning
// user, when referenced, must exist.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Task, error) {
	if in.Title == "" {
		return nil, ErrTitleRequired
	}

	if in.UserID != "" {
		if _, err := s.store.GetUser(ctx, in.UserID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrOwnerNotFound
			}
			return nil, fmt.Errorf("failed to verify owner: %w", err)
		}
	}

	if in.Priority == "" {
		in.Priority = string(models.PriorityMedium)
	}
	if in.Status == "" {
		in.Status = string(models.StatusTodo)
	}
	if in.Category == "" {
		in.Category = "work"
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:           uuid.New().String(),
		UserID:       in.UserID,
		Title:        in.Title,
		Description:  in.Description,
		Priority:     models.Priority(in.Priority),
		Status:       models.Status(in.Status),
		DueDate:      normalize(in.DueDate),
		ReminderDate: normalize(in.ReminderDate),
		Category:     in.Category,
		AISuggestion: in.AISuggestion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) List(ctx context.Context, filter storage.TaskFilter) ([]*models.Task, error) {
	return s.store.ListTasks(ctx, filter)
}

// Update applies partial-field semantics: nil fields keep their stored value.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Task, error) {
	patch := storage.TaskPatch{
		Title:        in.Title,
		Description:  in.Description,
		Priority:     in.Priority,
		Status:       in.Status,
		DueDate:      normalize(in.DueDate),
		ReminderDate: normalize(in.ReminderDate),
		Category:     in.Category,
		AISuggestion: in.AISuggestion,
	}
	return s.store.UpdateTask(ctx, id, patch)
}

// Delete removes the task unconditionally. Deleting a missing task is not an
// error.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, id)
}

// ApplyActions runs a batch of assistant-proposed actions under the given
// user's scope. Each entry succeeds or fails on its own: malformed entries
// are logged and skipped, and there is no rollback. Returns the number of
// actions that were applied.
func (s *Service) ApplyActions(ctx context.Context, userID string, actions []models.TaskAction) int {
	executed := 0
	for _, action := range actions {
		if err := s.applyAction(ctx, userID, action); err != nil {
			s.logger.Warn("Skipping assistant action",
				zap.Error(err),
				zap.String("type", action.Type),
				zap.String("task_id", action.TaskID),
				zap.String("user_id", userID))
			continue
		}
		executed++
	}
	return executed
}

func (s *Service) applyAction(ctx context.Context, userID string, action models.TaskAction) error {
	switch action.Type {
	case models.ActionCreateTask:
		if action.Title == "" {
			return ErrTitleRequired
		}
		if action.Priority != "" && !models.Priority(action.Priority).Valid() {
			return fmt.Errorf("invalid priority %q", action.Priority)
		}
		category := action.Category
		if category == "" {
			category = "other"
		}
		_, err := s.Create(ctx, CreateInput{
			UserID:      userID,
			Title:       action.Title,
			Description: action.Description,
			Priority:    action.Priority,
			Category:    category,
		})
		return err

	case models.ActionUpdateTask:
		if action.TaskID == "" {
			return errors.New("missing task id")
		}
		if action.Status != "" && !models.Status(action.Status).Valid() {
			return fmt.Errorf("invalid status %q", action.Status)
		}
		if action.Priority != "" && !models.Priority(action.Priority).Valid() {
			return fmt.Errorf("invalid priority %q", action.Priority)
		}
		if err := s.checkOwnership(ctx, userID, action.TaskID); err != nil {
			return err
		}
		var in UpdateInput
		if action.Status != "" {
			in.Status = &action.Status
		}
		if action.Priority != "" {
			in.Priority = &action.Priority
		}
		_, err := s.Update(ctx, action.TaskID, in)
		return err

	case models.ActionDeleteTask:
		if action.TaskID == "" {
			return errors.New("missing task id")
		}
		if err := s.checkOwnership(ctx, userID, action.TaskID); err != nil {
			return err
		}
		return s.Delete(ctx, action.TaskID)

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// checkOwnership keeps assistant actions inside the calling user's scope.
func (s *Service) checkOwnership(ctx context.Context, userID, taskID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.UserID != userID {
		return fmt.Errorf("task %s is not owned by user %s", taskID, userID)
	}
	return nil
}

func normalize(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
