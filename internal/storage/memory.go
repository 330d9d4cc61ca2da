package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/taskmaster/internal/models"
)

// MemoryStorage keeps everything in process memory. Used for tests and for
// running without a database file.
type MemoryStorage struct {
	mu     sync.RWMutex
	tasks  map[string]*models.Task
	users  map[string]*models.User
	chats  []*models.Chat
	tokens map[models.TokenKind]map[string]*models.Token
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tasks: make(map[string]*models.Task),
		users: make(map[string]*models.User),
		tokens: map[models.TokenKind]map[string]*models.Token{
			models.TokenVerification: make(map[string]*models.Token),
			models.TokenReset:        make(map[string]*models.Token),
		},
	}
}

func (s *MemoryStorage) Close() error {
	return nil
}

// Task methods

func (s *MemoryStorage) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *task
	s.tasks[t.ID] = &t
	return nil
}

func (s *MemoryStorage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, ErrNotFound
	}
	t := *task
	return &t, nil
}

func (s *MemoryStorage) ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*models.Task
	for _, task := range s.tasks {
		if filter.UserID != "" && task.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && string(task.Status) != filter.Status {
			continue
		}
		if filter.Category != "" && task.Category != filter.Category {
			continue
		}
		if filter.Priority != "" && string(task.Priority) != filter.Priority {
			continue
		}
		t := *task
		tasks = append(tasks, &t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *MemoryStorage) UpdateTask(ctx context.Context, id string, patch TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, ErrNotFound
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Priority != nil {
		task.Priority = models.Priority(*patch.Priority)
	}
	if patch.Status != nil {
		task.Status = models.Status(*patch.Status)
	}
	if patch.DueDate != nil {
		d := *patch.DueDate
		task.DueDate = &d
	}
	if patch.ReminderDate != nil {
		d := *patch.ReminderDate
		task.ReminderDate = &d
	}
	if patch.Category != nil {
		task.Category = *patch.Category
	}
	if patch.AISuggestion != nil {
		task.AISuggestion = *patch.AISuggestion
	}
	task.UpdatedAt = time.Now().UTC()

	t := *task
	return &t, nil
}

func (s *MemoryStorage) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)
	return nil
}

func (s *MemoryStorage) DueTasks(ctx context.Context, now time.Time, userID string) ([]*models.DueTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*models.DueTask
	for _, task := range s.tasks {
		if userID != "" && task.UserID != userID {
			continue
		}
		if task.ReminderDate == nil || task.ReminderSent || task.ReminderDate.After(now) {
			continue
		}
		owner, exists := s.users[task.UserID]
		if !exists {
			continue
		}
		t := *task
		due = append(due, &models.DueTask{
			Task:      t,
			UserName:  owner.Name,
			UserEmail: owner.Email,
		})
	}
	return due, nil
}

func (s *MemoryStorage) MarkReminderSent(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// No-op when the task was deleted after selection.
	if task, exists := s.tasks[taskID]; exists {
		task.ReminderSent = true
		task.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStorage) ReminderStatuses(ctx context.Context, userID string, now time.Time) ([]*models.ReminderStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var statuses []*models.ReminderStatus
	for _, task := range s.tasks {
		if userID != "" && task.UserID != userID {
			continue
		}
		if task.ReminderDate == nil {
			continue
		}
		statuses = append(statuses, &models.ReminderStatus{
			TaskID:       task.ID,
			Title:        task.Title,
			ReminderDate: *task.ReminderDate,
			Upcoming:     task.ReminderDate.After(now),
			Sent:         task.ReminderSent,
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].ReminderDate.Before(statuses[j].ReminderDate)
	})
	return statuses, nil
}

// User methods

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := *user
	s.users[u.ID] = &u
	return nil
}

func (s *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

func (s *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			u := *user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) SetEmailVerified(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrNotFound
	}
	user.EmailVerified = true
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStorage) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return ErrNotFound
	}
	user.Password = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Chat methods

func (s *MemoryStorage) SaveChat(ctx context.Context, chat *models.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *chat
	s.chats = append(s.chats, &c)
	return nil
}

func (s *MemoryStorage) ListChats(ctx context.Context, userID string, limit int) ([]*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chats []*models.Chat
	for _, chat := range s.chats {
		if chat.UserID != userID {
			continue
		}
		c := *chat
		chats = append(chats, &c)
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	if limit > 0 && len(chats) > limit {
		chats = chats[:limit]
	}
	return chats, nil
}

// Token methods

func (s *MemoryStorage) SaveToken(ctx context.Context, kind models.TokenKind, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *token
	s.tokens[kind][t.Code] = &t
	return nil
}

func (s *MemoryStorage) ConsumeToken(ctx context.Context, kind models.TokenKind, code string, now time.Time) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, exists := s.tokens[kind][code]
	if !exists {
		return nil, ErrTokenInvalid
	}
	delete(s.tokens[kind], code)

	if token.ExpiresAt.Before(now) {
		return nil, ErrTokenInvalid
	}
	t := *token
	return &t, nil
}

func (s *MemoryStorage) DeleteUserTokens(ctx context.Context, kind models.TokenKind, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for code, token := range s.tokens[kind] {
		if token.UserID == userID {
			delete(s.tokens[kind], code)
		}
	}
	return nil
}
