package models

import "time"

// Chat is one exchange with the assistant. Rows are append-only.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskAction is one proposed task mutation emitted by the assistant. The
// assistant's output is untrusted: entries are validated individually and
// malformed ones are dropped without aborting the batch.
type TaskAction struct {
	Type        string `json:"type"`
	TaskID      string `json:"taskId,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status,omitempty"`
}

const (
	ActionCreateTask = "create_task"
	ActionUpdateTask = "update_task"
	ActionDeleteTask = "delete_task"
)
