package models

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ReminderState is the reminder sub-state of a task, derived from its
// reminder timestamp and sent flag.
type ReminderState string

const (
	ReminderNone    ReminderState = "none"    // no reminder configured
	ReminderPending ReminderState = "pending" // reminder set, not yet due
	ReminderDue     ReminderState = "due"     // reminder time reached, not sent
	ReminderSent    ReminderState = "sent"    // dispatched, never revisited
)

type Task struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     Priority   `json:"priority"`
	Status       Status     `json:"status"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ReminderDate *time.Time `json:"reminder_date,omitempty"`
	ReminderSent bool       `json:"reminder_sent"`
	Category     string     `json:"category"`
	AISuggestion string     `json:"ai_suggestion,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ReminderStateAt reports the task's reminder sub-state at the given instant.
// A reminder whose timestamp equals now is already due.
func (t *Task) ReminderStateAt(now time.Time) ReminderState {
	switch {
	case t.ReminderDate == nil:
		return ReminderNone
	case t.ReminderSent:
		return ReminderSent
	case t.ReminderDate.After(now):
		return ReminderPending
	default:
		return ReminderDue
	}
}

// DueTask is a task selected for reminder dispatch together with the owning
// user's contact fields.
type DueTask struct {
	Task      Task
	UserName  string
	UserEmail string
}

// ReminderStatus is the read-only reminder view consumed by the UI.
type ReminderStatus struct {
	TaskID       string    `json:"task_id"`
	Title        string    `json:"title"`
	ReminderDate time.Time `json:"reminder_date"`
	Upcoming     bool      `json:"upcoming"`
	Sent         bool      `json:"sent"`
}
