package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/models"
)

// ChatResult is the assistant's reply to a chat message: a free-text
// response plus zero or more proposed task mutations.
type ChatResult struct {
	Response string              `json:"response"`
	Actions  []models.TaskAction `json:"actions"`
}

// fallbackReply is what the user sees when the completion API is unreachable
// or returns nothing usable.
const fallbackReply = "I'm having trouble connecting right now. Please try again later."

type assistInfo struct {
	Description string `json:"description"`
	Category    string `json:"category"`
}

type Assistant struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

func New(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *Assistant {
	return &Assistant{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		logger:      logger,
	}
}

const chatSystemPrompt = `You are TaskMaster AI, a super smart and autonomous productivity assistant integrated with a task management app.
You are intelligent, proactive, and can directly manage tasks without asking for confirmation.

IMPORTANT: You must respond ONLY with a valid JSON object in this format:
{
  "response": "Your friendly response to the user",
  "actions": [
    {"type": "create_task", "title": "task title", "description": "optional description", "priority": "high|medium|low", "category": "work|personal|shopping|health|other"},
    {"type": "update_task", "taskId": "task_id_from_list", "status": "todo|in-progress|done", "priority": "high|medium|low"},
    {"type": "delete_task", "taskId": "task_id_from_list"}
  ]
}

RULES:
1. Always parse user intent and execute task operations automatically
2. Never ask for clarification or format - be smart and infer what the user wants
3. If user says "create task: X", create it immediately
4. If user says "mark X as done" or "finish X", find the matching task and mark it done
5. If user says "delete X", delete the matching task
6. If user says "high priority X", update the task to high priority
7. Be concise and confident in your responses
8. Use available task IDs from the list when updating/deleting`

// Chat asks the assistant to answer a message in the context of the user's
// recent tasks. Transport and parse failures degrade to a canned reply with
// no actions; the caller never has to distinguish them.
func (a *Assistant) Chat(ctx context.Context, message string, tasks []*models.Task) ChatResult {
	system := chatSystemPrompt + formatTaskContext(tasks)

	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: message},
			},
			MaxTokens:   a.maxTokens,
			Temperature: a.temperature,
		},
	)
	if err != nil {
		a.logger.Error("Failed to get assistant response", zap.Error(err))
		return ChatResult{Response: fallbackReply}
	}
	if len(resp.Choices) == 0 {
		a.logger.Error("Assistant returned an empty completion")
		return ChatResult{Response: fallbackReply}
	}

	return ParseChatReply(resp.Choices[0].Message.Content, a.logger)
}

// ParseChatReply decodes the assistant's strict-JSON reply. A reply that is
// not valid JSON is returned verbatim as the response text with no actions.
func ParseChatReply(reply string, logger *zap.Logger) ChatResult {
	reply = strings.TrimSpace(reply)

	var result ChatResult
	if err := json.Unmarshal([]byte(reply), &result); err != nil {
		logger.Warn("Failed to parse assistant reply as JSON",
			zap.Error(err),
			zap.String("reply", reply))
		if reply == "" {
			reply = "I'll help you with that!"
		}
		return ChatResult{Response: reply}
	}

	if result.Response == "" {
		result.Response = "Task completed!"
	}
	return result
}

func formatTaskContext(tasks []*models.Task) string {
	if len(tasks) == 0 {
		return "\n\nThe user has no tasks yet."
	}

	ids := make([]string, 0, len(tasks))
	var b strings.Builder
	b.WriteString("\n\nUser's current tasks:\n")
	for _, t := range tasks {
		ids = append(ids, t.ID)
		fmt.Fprintf(&b, "- [ID: %s] [%s] %s (%s priority)",
			t.ID, strings.ToUpper(string(t.Status)), t.Title, t.Priority)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " - Due: %s", t.DueDate.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nAvailable task IDs to reference: %s", strings.Join(ids, ", "))
	return b.String()
}

// Describe suggests a description and category for a task title. Failures
// fall back to an empty description and the "other" category.
func (a *Assistant) Describe(ctx context.Context, title string) (description, category string) {
	prompt := fmt.Sprintf(`Given this task title: %q, provide a brief helpful description and suggest a category (work, personal, shopping, health, or other). Respond in JSON format: {"description": "...", "category": "..."}`, title)

	reply, err := a.complete(ctx, prompt, 200)
	if err != nil {
		a.logger.Error("Failed to get task description", zap.Error(err))
		return "", "other"
	}

	var info assistInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &info); err != nil {
		a.logger.Warn("Failed to parse description reply", zap.Error(err), zap.String("reply", reply))
		return "", "other"
	}
	if info.Category == "" {
		info.Category = "other"
	}
	return info.Description, info.Category
}

// Suggest produces a short actionable suggestion for a task.
func (a *Assistant) Suggest(ctx context.Context, title, description, status string) string {
	prompt := fmt.Sprintf("Task: %q\nDescription: %q\nStatus: %s\n\nProvide a brief actionable suggestion to help with this task.",
		title, description, status)

	reply, err := a.complete(ctx, prompt, 150)
	if err != nil {
		a.logger.Error("Failed to get task suggestion", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(reply)
}

// Analyze summarizes a task list's distribution and productivity.
func (a *Assistant) Analyze(ctx context.Context, tasks []*models.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s (%s priority, %s)\n", t.Title, t.Priority, t.Status)
	}
	prompt := "Analyze this task list and provide a brief insight about task distribution and productivity:\n" + b.String()

	reply, err := a.complete(ctx, prompt, 300)
	if err != nil {
		a.logger.Error("Failed to get task analysis", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(reply)
}

func (a *Assistant) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   maxTokens,
			Temperature: a.temperature,
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
