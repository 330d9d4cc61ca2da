package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/taskmaster/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

// SQLStorage implements Storage over database/sql. Queries are written with
// ? placeholders and rebound to $n for PostgreSQL, so the SQLite and
// PostgreSQL backends share one set of statements.
type SQLStorage struct {
	db     *sql.DB
	driver string
}

func (s *SQLStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *SQLStorage) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// Task methods

func (s *SQLStorage) CreateTask(ctx context.Context, task *models.Task) error {
	query := s.rebind(`
		INSERT INTO tasks (id, user_id, title, description, priority, status,
			due_date, reminder_date, reminder_sent, category, ai_suggestion,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		nullString(task.UserID),
		task.Title,
		task.Description,
		string(task.Priority),
		string(task.Status),
		nullTime(task.DueDate),
		nullTime(task.ReminderDate),
		task.ReminderSent,
		task.Category,
		nullString(task.AISuggestion),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating task: %v", err)
	}

	return nil
}

const taskColumns = `id, user_id, title, description, priority, status,
	due_date, reminder_date, reminder_sent, category, ai_suggestion,
	created_at, updated_at`

func (s *SQLStorage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := s.rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching task: %v", err)
	}

	return task, nil
}

func (s *SQLStorage) ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`

	var conds []string
	var args []any
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, filter.Priority)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tasks: %v", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task: %v", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

func (s *SQLStorage) UpdateTask(ctx context.Context, id string, patch TaskPatch) (*models.Task, error) {
	query := s.rebind(`
		UPDATE tasks
		SET title = COALESCE(?, title),
		    description = COALESCE(?, description),
		    priority = COALESCE(?, priority),
		    status = COALESCE(?, status),
		    due_date = COALESCE(?, due_date),
		    reminder_date = COALESCE(?, reminder_date),
		    category = COALESCE(?, category),
		    ai_suggestion = COALESCE(?, ai_suggestion),
		    updated_at = ?
		WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query,
		patch.Title,
		patch.Description,
		patch.Priority,
		patch.Status,
		patch.DueDate,
		patch.ReminderDate,
		patch.Category,
		patch.AISuggestion,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating task: %v", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	return s.GetTask(ctx, id)
}

func (s *SQLStorage) DeleteTask(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM tasks WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("error deleting task: %v", err)
	}
	return nil
}

func (s *SQLStorage) DueTasks(ctx context.Context, now time.Time, userID string) ([]*models.DueTask, error) {
	query := `
		SELECT t.id, t.user_id, t.title, t.description, t.priority, t.status,
			t.due_date, t.reminder_date, t.reminder_sent, t.category,
			t.ai_suggestion, t.created_at, t.updated_at, u.name, u.email
		FROM tasks t
		JOIN users u ON u.id = t.user_id
		WHERE t.reminder_date IS NOT NULL
		  AND t.reminder_sent = ?
		  AND t.reminder_date <= ?`
	args := []any{false, now}
	if userID != "" {
		query += " AND t.user_id = ?"
		args = append(args, userID)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying due tasks: %v", err)
	}
	defer rows.Close()

	var due []*models.DueTask
	for rows.Next() {
		var (
			t            models.Task
			ownerID      sql.NullString
			dueDate      sql.NullTime
			reminderDate sql.NullTime
			aiSuggestion sql.NullString
			name, email  string
		)
		err := rows.Scan(
			&t.ID, &ownerID, &t.Title, &t.Description, &t.Priority, &t.Status,
			&dueDate, &reminderDate, &t.ReminderSent, &t.Category,
			&aiSuggestion, &t.CreatedAt, &t.UpdatedAt, &name, &email,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning due task: %v", err)
		}
		t.UserID = ownerID.String
		t.AISuggestion = aiSuggestion.String
		if dueDate.Valid {
			t.DueDate = &dueDate.Time
		}
		if reminderDate.Valid {
			t.ReminderDate = &reminderDate.Time
		}
		due = append(due, &models.DueTask{Task: t, UserName: name, UserEmail: email})
	}

	return due, rows.Err()
}

func (s *SQLStorage) MarkReminderSent(ctx context.Context, taskID string) error {
	query := s.rebind(`UPDATE tasks SET reminder_sent = ?, updated_at = ? WHERE id = ?`)

	// Deliberately ignores a missing row: the task may have been deleted
	// between selection and this update.
	if _, err := s.db.ExecContext(ctx, query, true, time.Now().UTC(), taskID); err != nil {
		return fmt.Errorf("error marking reminder sent: %v", err)
	}
	return nil
}

func (s *SQLStorage) ReminderStatuses(ctx context.Context, userID string, now time.Time) ([]*models.ReminderStatus, error) {
	query := `
		SELECT id, title, reminder_date, reminder_sent
		FROM tasks
		WHERE reminder_date IS NOT NULL`
	var args []any
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY reminder_date"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying reminder statuses: %v", err)
	}
	defer rows.Close()

	var statuses []*models.ReminderStatus
	for rows.Next() {
		st := &models.ReminderStatus{}
		if err := rows.Scan(&st.TaskID, &st.Title, &st.ReminderDate, &st.Sent); err != nil {
			return nil, fmt.Errorf("error scanning reminder status: %v", err)
		}
		st.Upcoming = st.ReminderDate.After(now)
		statuses = append(statuses, st)
	}

	return statuses, rows.Err()
}

// User methods

func (s *SQLStorage) CreateUser(ctx context.Context, user *models.User) error {
	query := s.rebind(`
		INSERT INTO users (id, name, email, password, company, role,
			email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Password,
		nullString(user.Company),
		nullString(user.Role),
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating user: %v", err)
	}

	return nil
}

const userColumns = `id, name, email, password, company, role, email_verified,
	created_at, updated_at`

func (s *SQLStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.scanUserRow(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	return s.scanUserRow(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLStorage) scanUserRow(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var company, role sql.NullString
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Password,
		&company, &role, &user.EmailVerified,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching user: %v", err)
	}
	user.Company = company.String
	user.Role = role.String
	return user, nil
}

func (s *SQLStorage) SetEmailVerified(ctx context.Context, userID string) error {
	query := s.rebind(`UPDATE users SET email_verified = ?, updated_at = ? WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query, true, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("error verifying user: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStorage) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := s.rebind(`UPDATE users SET password = ?, updated_at = ? WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("error updating password: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Chat methods

func (s *SQLStorage) SaveChat(ctx context.Context, chat *models.Chat) error {
	query := s.rebind(`
		INSERT INTO chats (id, user_id, message, response, created_at)
		VALUES (?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		chat.ID, chat.UserID, chat.Message, chat.Response, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving chat: %v", err)
	}
	return nil
}

func (s *SQLStorage) ListChats(ctx context.Context, userID string, limit int) ([]*models.Chat, error) {
	query := s.rebind(`
		SELECT id, user_id, message, response, created_at
		FROM chats
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying chats: %v", err)
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		chat := &models.Chat{}
		err := rows.Scan(&chat.ID, &chat.UserID, &chat.Message, &chat.Response, &chat.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning chat: %v", err)
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

// Token methods

func tokenTable(kind models.TokenKind) string {
	if kind == models.TokenReset {
		return "reset_tokens"
	}
	return "verification_tokens"
}

func (s *SQLStorage) SaveToken(ctx context.Context, kind models.TokenKind, token *models.Token) error {
	query := s.rebind(`
		INSERT INTO ` + tokenTable(kind) + ` (id, user_id, code, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.Code, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving token: %v", err)
	}
	return nil
}

func (s *SQLStorage) ConsumeToken(ctx context.Context, kind models.TokenKind, code string, now time.Time) (*models.Token, error) {
	table := tokenTable(kind)

	token := &models.Token{}
	query := s.rebind(`SELECT id, user_id, code, expires_at, created_at FROM ` + table + ` WHERE code = ?`)
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&token.ID, &token.UserID, &token.Code, &token.ExpiresAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching token: %v", err)
	}

	// Single use: the row is removed whether it is being consumed or has
	// lapsed. Losing the delete race means another caller consumed it.
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM `+table+` WHERE id = ?`), token.ID)
	if err != nil {
		return nil, fmt.Errorf("error consuming token: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrTokenInvalid
	}

	if token.ExpiresAt.Before(now) {
		return nil, ErrTokenInvalid
	}

	return token, nil
}

func (s *SQLStorage) DeleteUserTokens(ctx context.Context, kind models.TokenKind, userID string) error {
	query := s.rebind(`DELETE FROM ` + tokenTable(kind) + ` WHERE user_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("error deleting tokens: %v", err)
	}
	return nil
}

// Scan helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var (
		userID       sql.NullString
		dueDate      sql.NullTime
		reminderDate sql.NullTime
		aiSuggestion sql.NullString
	)
	err := row.Scan(
		&task.ID, &userID, &task.Title, &task.Description,
		&task.Priority, &task.Status, &dueDate, &reminderDate,
		&task.ReminderSent, &task.Category, &aiSuggestion,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.UserID = userID.String
	task.AISuggestion = aiSuggestion.String
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if reminderDate.Valid {
		task.ReminderDate = &reminderDate.Time
	}
	return task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
