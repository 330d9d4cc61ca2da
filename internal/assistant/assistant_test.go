package assistant

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/models"
)

// newStubAssistant points the client at a local server standing in for the
// completion API.
func newStubAssistant(t *testing.T, handler http.HandlerFunc) *Assistant {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return &Assistant{
		client:    openai.NewClientWithConfig(cfg),
		model:     "gpt-4o-mini",
		maxTokens: 100,
		logger:    zap.NewNop(),
	}
}

func completionReply(content string) string {
	raw := strings.ReplaceAll(content, `"`, `\"`)
	raw = strings.ReplaceAll(raw, "\n", `\n`)
	return fmt.Sprintf(`{"id":"1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"%s"},"finish_reason":"stop"}]}`, raw)
}

func TestChatParsesCompletionReply(t *testing.T) {
	a := newStubAssistant(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionReply(`{"response": "Done!", "actions": [{"type": "delete_task", "taskId": "t-1"}]}`))
	})

	result := a.Chat(context.Background(), "delete my task", nil)
	assert.Equal(t, "Done!", result.Response)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "t-1", result.Actions[0].TaskID)
}

func TestChatEmptyChoicesFallsBack(t *testing.T) {
	a := newStubAssistant(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","model":"gpt-4o-mini","choices":[]}`)
	})

	result := a.Chat(context.Background(), "hello", nil)
	assert.Equal(t, fallbackReply, result.Response)
	assert.Empty(t, result.Actions)
}

func TestChatTransportFailureFallsBack(t *testing.T) {
	a := newStubAssistant(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	result := a.Chat(context.Background(), "hello", nil)
	assert.Equal(t, fallbackReply, result.Response)
	assert.Empty(t, result.Actions)
}

func TestParseChatReplyValidJSON(t *testing.T) {
	reply := `{
		"response": "Created your task!",
		"actions": [
			{"type": "create_task", "title": "Buy milk", "priority": "low", "category": "shopping"},
			{"type": "update_task", "taskId": "t-1", "status": "done"}
		]
	}`

	result := ParseChatReply(reply, zap.NewNop())
	assert.Equal(t, "Created your task!", result.Response)
	require.Len(t, result.Actions, 2)
	assert.Equal(t, models.ActionCreateTask, result.Actions[0].Type)
	assert.Equal(t, "Buy milk", result.Actions[0].Title)
	assert.Equal(t, models.ActionUpdateTask, result.Actions[1].Type)
	assert.Equal(t, "t-1", result.Actions[1].TaskID)
}

func TestParseChatReplyNonJSONFallsBackToPlainText(t *testing.T) {
	result := ParseChatReply("Sure, I'll take care of that.", zap.NewNop())
	assert.Equal(t, "Sure, I'll take care of that.", result.Response)
	assert.Empty(t, result.Actions)
}

func TestParseChatReplyEmptyDefaults(t *testing.T) {
	result := ParseChatReply("", zap.NewNop())
	assert.Equal(t, "I'll help you with that!", result.Response)

	result = ParseChatReply(`{"actions": []}`, zap.NewNop())
	assert.Equal(t, "Task completed!", result.Response)
}

func TestFormatTaskContextListsIDs(t *testing.T) {
	ctx := formatTaskContext([]*models.Task{
		{ID: "t-1", Title: "Write docs", Status: models.StatusTodo, Priority: models.PriorityHigh},
		{ID: "t-2", Title: "Review PR", Status: models.StatusDone, Priority: models.PriorityLow},
	})

	assert.Contains(t, ctx, "[ID: t-1]")
	assert.Contains(t, ctx, "Write docs")
	assert.Contains(t, ctx, "Available task IDs to reference: t-1, t-2")
	assert.True(t, strings.Contains(ctx, "TODO"))
}

func TestFormatTaskContextEmpty(t *testing.T) {
	assert.Contains(t, formatTaskContext(nil), "no tasks yet")
}
