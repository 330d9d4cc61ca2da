package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/assistant"
	"github.com/xaenox/taskmaster/internal/auth"
	"github.com/xaenox/taskmaster/internal/models"
	"github.com/xaenox/taskmaster/internal/notifier"
	"github.com/xaenox/taskmaster/internal/reminder"
	"github.com/xaenox/taskmaster/internal/storage"
	"github.com/xaenox/taskmaster/internal/task"
	"github.com/xaenox/taskmaster/pkg/config"
)

type captureNotifier struct {
	sent []notifier.Message
}

func (n *captureNotifier) Send(_ context.Context, msg notifier.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

// fakeAssistant replays a scripted chat result and canned answers for the
// one-shot helpers.
type fakeAssistant struct {
	result assistant.ChatResult
}

func (f *fakeAssistant) Chat(_ context.Context, _ string, _ []*models.Task) assistant.ChatResult {
	return f.result
}

func (f *fakeAssistant) Describe(_ context.Context, _ string) (string, string) {
	return "a helpful description", "work"
}

func (f *fakeAssistant) Suggest(_ context.Context, _, _, _ string) string {
	return "break it into smaller steps"
}

func (f *fakeAssistant) Analyze(_ context.Context, _ []*models.Task) string {
	return "your workload looks balanced"
}

type testEnv struct {
	server    *Server
	store     *storage.MemoryStorage
	notifier  *captureNotifier
	assistant *fakeAssistant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	cn := &captureNotifier{}
	fa := &fakeAssistant{}
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	deps := Deps{
		Store:     store,
		Auth:      auth.NewService(store, cn, jwtManager, logger),
		JWT:       jwtManager,
		Tasks:     task.NewService(store, logger),
		Assistant: fa,
		Engine: reminder.NewEngine(store, cn, reminder.Config{
			Interval:    time.Minute,
			SendTimeout: time.Second,
		}, logger),
	}
	srv := New(config.ServerConfig{Port: 0, AllowOrigins: "*"}, deps, logger)
	return &testEnv{server: srv, store: store, notifier: cn, assistant: fa}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func registerUser(t *testing.T, env *testEnv, email string) (userID, token string) {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     "Test User",
		"email":    email,
		"password": "hunter2!",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	decode(t, resp, &body)
	require.NotEmpty(t, body.User.ID)
	require.NotEmpty(t, body.Token)
	return body.User.ID, body.Token
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	userID, _ := registerUser(t, env, "flow@example.com")
	assert.Len(t, env.notifier.sent, 1, "registration emails a verification code")

	resp := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "flow@example.com",
		"password": "hunter2!",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		User models.User `json:"user"`
	}
	decode(t, resp, &body)
	assert.Equal(t, userID, body.User.ID)

	resp = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "flow@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     "Dup",
		"email":    "flow@example.com",
		"password": "other",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/tasks/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/tasks/", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTaskCRUDOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	userID, token := registerUser(t, env, "tasks@example.com")

	resp := env.do(t, http.MethodPost, "/tasks/", token, map[string]any{
		"userId":      userID,
		"title":       "Ship release",
		"description": "Tag and push",
		"priority":    "high",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Task
	decode(t, resp, &created)
	assert.Equal(t, "Ship release", created.Title)
	assert.Equal(t, models.PriorityHigh, created.Priority)
	assert.Equal(t, models.StatusTodo, created.Status, "status defaults")
	assert.Equal(t, "work", created.Category, "category defaults")

	// Missing title is rejected before it reaches the store.
	resp = env.do(t, http.MethodPost, "/tasks/", token, map[string]any{"userId": userID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown owner is a 404.
	resp = env.do(t, http.MethodPost, "/tasks/", token, map[string]any{
		"userId": "ghost", "title": "x",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/tasks/?userId="+userID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Task
	decode(t, resp, &list)
	require.Len(t, list, 1)

	// Partial update touches only the named field.
	resp = env.do(t, http.MethodPut, "/tasks/"+created.ID, token, map[string]any{
		"status": "done",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Task
	decode(t, resp, &updated)
	assert.Equal(t, models.StatusDone, updated.Status)
	assert.Equal(t, "Ship release", updated.Title)
	assert.Equal(t, "Tag and push", updated.Description)

	resp = env.do(t, http.MethodPut, "/tasks/missing", token, map[string]any{"status": "done"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/tasks/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/tasks/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Deleting again still succeeds.
	resp = env.do(t, http.MethodDelete, "/tasks/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestOnDemandReminderRun(t *testing.T) {
	env := newTestEnv(t)
	userID, token := registerUser(t, env, "remind@example.com")
	env.notifier.sent = nil

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, env.store.CreateTask(context.Background(), &models.Task{
		ID:           "t1",
		UserID:       userID,
		Title:        "Call dentist",
		Priority:     models.PriorityMedium,
		Status:       models.StatusTodo,
		Category:     "personal",
		ReminderDate: &past,
	}))

	resp := env.do(t, http.MethodPost, "/reminders/run", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report reminder.Report
	decode(t, resp, &report)
	assert.Equal(t, 1, report.Dispatched)

	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, "remind@example.com", env.notifier.sent[0].To)
	assert.Equal(t, "Reminder: Call dentist", env.notifier.sent[0].Subject)

	// A second run finds nothing: the reminder was marked sent.
	resp = env.do(t, http.MethodPost, "/reminders/run", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &report)
	assert.Equal(t, 0, report.Dispatched)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/reminders/?userId=%s", userID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var statuses []models.ReminderStatus
	decode(t, resp, &statuses)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Sent)
	assert.False(t, statuses[0].Upcoming)
}

func TestChatAppliesAssistantActions(t *testing.T) {
	env := newTestEnv(t)
	userID, token := registerUser(t, env, "chat@example.com")

	env.assistant.result = assistant.ChatResult{
		Response: "Created it!",
		Actions: []models.TaskAction{
			{Type: models.ActionCreateTask, Title: "Buy milk", Priority: "low", Category: "shopping"},
			{Type: models.ActionDeleteTask}, // missing taskId, must be skipped
		},
	}

	resp := env.do(t, http.MethodPost, "/chat/", token, map[string]string{
		"message": "add buy milk to my list",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Response        string `json:"response"`
		ActionsExecuted int    `json:"actionsExecuted"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Created it!", body.Response)
	assert.Equal(t, 1, body.ActionsExecuted)

	tasks, err := env.store.ListTasks(context.Background(), storage.TaskFilter{UserID: userID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)

	resp = env.do(t, http.MethodGet, "/chat/"+userID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var chats []models.Chat
	decode(t, resp, &chats)
	require.Len(t, chats, 1)
	assert.Equal(t, "add buy milk to my list", chats[0].Message)
	assert.Equal(t, "Created it!", chats[0].Response)
}

func TestChatDegradedAssistantStillResponds(t *testing.T) {
	env := newTestEnv(t)
	userID, token := registerUser(t, env, "degraded@example.com")

	// What the real assistant returns when the completion API is down:
	// a canned apology and no actions, never an error.
	env.assistant.result = assistant.ChatResult{
		Response: "I'm having trouble connecting right now. Please try again later.",
	}

	resp := env.do(t, http.MethodPost, "/chat/", token, map[string]string{
		"message": "hello?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Response        string `json:"response"`
		ActionsExecuted int    `json:"actionsExecuted"`
	}
	decode(t, resp, &body)
	assert.Contains(t, body.Response, "trouble connecting")
	assert.Zero(t, body.ActionsExecuted)

	// The exchange is still recorded.
	chats, err := env.store.ListChats(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestChatIgnoresBodyUserID(t *testing.T) {
	env := newTestEnv(t)
	_, tokenA := registerUser(t, env, "caller@example.com")
	victimID, _ := registerUser(t, env, "victim@example.com")

	require.NoError(t, env.store.CreateTask(context.Background(), &models.Task{
		ID:       "victim-task",
		UserID:   victimID,
		Title:    "Private",
		Priority: models.PriorityMedium,
		Status:   models.StatusTodo,
		Category: "work",
	}))

	env.assistant.result = assistant.ChatResult{
		Response: "Deleted!",
		Actions: []models.TaskAction{
			{Type: models.ActionDeleteTask, TaskID: "victim-task"},
		},
	}

	// Naming another user in the body does not widen the caller's scope.
	resp := env.do(t, http.MethodPost, "/chat/", tokenA, map[string]string{
		"userId":  victimID,
		"message": "delete everything",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ActionsExecuted int `json:"actionsExecuted"`
	}
	decode(t, resp, &body)
	assert.Zero(t, body.ActionsExecuted)

	_, err := env.store.GetTask(context.Background(), "victim-task")
	assert.NoError(t, err, "the other user's task survives")
}

func TestAIEndpoints(t *testing.T) {
	env := newTestEnv(t)
	_, token := registerUser(t, env, "ai@example.com")

	resp := env.do(t, http.MethodPost, "/ai/assist", token, map[string]string{"title": "Plan trip"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var assist map[string]string
	decode(t, resp, &assist)
	assert.Equal(t, "a helpful description", assist["description"])
	assert.Equal(t, "work", assist["category"])

	resp = env.do(t, http.MethodPost, "/ai/suggestion", token, map[string]string{"title": "Plan trip"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/ai/analysis", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var analysis map[string]string
	decode(t, resp, &analysis)
	assert.Equal(t, "your workload looks balanced", analysis["analysis"])
}

func TestVerifyAndResetOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	userID, _ := registerUser(t, env, "codes@example.com")

	resp := env.do(t, http.MethodPost, "/auth/verify", "", map[string]string{
		"code": "not-a-real-code",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "unknown emails get the same answer")

	resp = env.do(t, http.MethodGet, "/auth/user/"+userID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user models.User
	decode(t, resp, &user)
	assert.Equal(t, "codes@example.com", user.Email)
	assert.Empty(t, user.Password, "password hash never leaves the API")

	resp = env.do(t, http.MethodGet, "/auth/user/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
