// Package reminder implements the periodic reminder scan and dispatch.
//
// Delivery is at-least-once: a task's reminder-sent flag flips only after
// the notifier reports success, so a failed send leaves the task due and it
// is retried on the next tick. The window between a successful send and the
// flag update is the only source of duplicate delivery and is bounded by the
// tick interval.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/models"
	"github.com/xaenox/taskmaster/internal/notifier"
	"github.com/xaenox/taskmaster/internal/storage"
)

type Config struct {
	Interval    time.Duration
	SendTimeout time.Duration
}

// Dispatch records one successfully delivered reminder.
type Dispatch struct {
	TaskID     string `json:"task_id"`
	DispatchID string `json:"dispatch_id"`
}

// Report summarizes one scan.
type Report struct {
	Dispatched int        `json:"dispatched"`
	Dispatches []Dispatch `json:"dispatches"`
}

type Engine struct {
	store    storage.Storage
	notifier notifier.Notifier
	logger   *zap.Logger
	config   Config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(store storage.Storage, n notifier.Notifier, config Config, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		notifier: n,
		logger:   logger,
		config:   config,
	}
}

// Start launches the periodic scan. It returns immediately; the scan runs
// until Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("reminder engine is already running")
	}
	e.running = true

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(runCtx)
	}()

	e.logger.Info("Reminder engine started",
		zap.Duration("interval", e.config.Interval))
	return nil
}

// Stop cancels the periodic scan and waits for an in-flight tick to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("Reminder engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick runs one global scan. A store failure aborts the whole tick with a
// log; the process keeps running and retries on the next interval.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	report, err := e.runScan(ctx, "", now)
	if err != nil {
		e.logger.Error("Reminder tick aborted", zap.Error(err))
		return
	}
	e.logger.Info("Reminder tick finished",
		zap.Int("dispatched", report.Dispatched))
}

// RunForUser performs the same scan as the periodic tick, scoped to one
// user's tasks. Same eligibility predicate, same success and failure
// handling.
func (e *Engine) RunForUser(ctx context.Context, userID string, now time.Time) (*Report, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return e.runScan(ctx, userID, now)
}

func (e *Engine) runScan(ctx context.Context, userID string, now time.Time) (*Report, error) {
	due, err := e.store.DueTasks(ctx, now, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query due tasks: %w", err)
	}

	report := &Report{}
	for _, d := range due {
		// Each task is dispatched independently: one failure never
		// blocks the rest of the batch.
		msg := buildMessage(d)

		sendCtx, cancel := context.WithTimeout(ctx, e.config.SendTimeout)
		err := e.notifier.Send(sendCtx, msg)
		cancel()
		if err != nil {
			e.logger.Error("Failed to send reminder",
				zap.Error(err),
				zap.String("task_id", d.Task.ID),
				zap.String("to", msg.To))
			continue
		}

		// A missing row here means the task was deleted after
		// selection; MarkReminderSent treats that as a no-op.
		if err := e.store.MarkReminderSent(ctx, d.Task.ID); err != nil {
			e.logger.Error("Failed to mark reminder sent",
				zap.Error(err),
				zap.String("task_id", d.Task.ID))
		}

		report.Dispatches = append(report.Dispatches, Dispatch{
			TaskID:     d.Task.ID,
			DispatchID: uuid.New().String(),
		})
	}

	report.Dispatched = len(report.Dispatches)
	return report, nil
}

const timeLayout = "Mon, 02 Jan 2006 15:04 MST"

func buildMessage(d *models.DueTask) notifier.Message {
	t := d.Task

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThis is a reminder for your task:\n\n", d.UserName)
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	if t.DueDate != nil {
		fmt.Fprintf(&b, "Due: %s\n", t.DueDate.Format(timeLayout))
	}
	fmt.Fprintf(&b, "Reminder time: %s\n", t.ReminderDate.Format(timeLayout))

	return notifier.Message{
		To:      d.UserEmail,
		Subject: "Reminder: " + t.Title,
		Body:    b.String(),
	}
}
