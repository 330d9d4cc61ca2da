package storage

import (
	"context"
	"errors"
	"time"

	"github.com/xaenox/taskmaster/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTokenInvalid is returned when a code is unknown, expired or
	// already consumed.
	ErrTokenInvalid = errors.New("invalid or expired token")
)

// TaskFilter narrows task listings. Zero-value fields are ignored.
type TaskFilter struct {
	UserID   string
	Status   string
	Category string
	Priority string
}

// TaskPatch applies partial-update semantics: nil fields retain the stored
// value.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *string
	Status       *string
	DueDate      *time.Time
	ReminderDate *time.Time
	Category     *string
	AISuggestion *string
}

type Storage interface {
	TaskStorage
	UserStorage
	ChatStorage
	TokenStorage
	Close() error
}

type TaskStorage interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// DueTasks returns tasks whose reminder timestamp is set, unsent and
	// not after now, joined with the owning user's contact fields. An
	// empty userID selects across all users.
	DueTasks(ctx context.Context, now time.Time, userID string) ([]*models.DueTask, error)
	// MarkReminderSent flips the reminder-sent flag. It is a no-op when
	// the row no longer exists.
	MarkReminderSent(ctx context.Context, taskID string) error
	ReminderStatuses(ctx context.Context, userID string, now time.Time) ([]*models.ReminderStatus, error)
}

type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetEmailVerified(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type ChatStorage interface {
	SaveChat(ctx context.Context, chat *models.Chat) error
	ListChats(ctx context.Context, userID string, limit int) ([]*models.Chat, error)
}

type TokenStorage interface {
	SaveToken(ctx context.Context, kind models.TokenKind, token *models.Token) error
	// ConsumeToken returns the token matching code if it has not expired,
	// deleting it in the same step so a code is usable at most once.
	ConsumeToken(ctx context.Context, kind models.TokenKind, code string, now time.Time) (*models.Token, error)
	DeleteUserTokens(ctx context.Context, kind models.TokenKind, userID string) error
}
