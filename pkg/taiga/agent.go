package taiga

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/conversation"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/settings"
	"github.com/huyly0909/chainchat/pkg/toolhelpers"
	"github.com/huyly0909/chainchat/pkg/tools"
)

const systemPromptTemplate = `You are a Taiga project management assistant. You can manage projects, user stories, tasks, issues, epics, and milestones.

IMPORTANT AUTHENTICATION:
- If you are not authenticated, you MUST first call the 'login' tool to get a session_id
- If you have a session_id, DON'T login again
- session_id example: "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx"
- Use the session_id from login for all subsequent tool calls
- If you get authentication errors, try logging in again

TAIGA CREDENTIALS:
- URL: %s
- Username: %s
- Password: %s

WORKFLOW:
1. If user asks for data that requires authentication (like listing projects), login first
2. Use the session_id from login response for all other tool calls
3. For project management tasks, break them down into logical steps
4. Always provide clear feedback about what you're doing

Available tools include login, logout, session_status, and full CRUD operations for projects, user stories, tasks, issues, epics, and milestones.`

// SystemPrompt renders the agent's system prompt with the Taiga instance
// credentials, so the model can pass them to the login tool.
func SystemPrompt(s settings.TaigaSettings) string {
	return fmt.Sprintf(systemPromptTemplate, s.URL, s.Username, s.Password)
}

// ExamplePrompts lists tasks shown in the interactive banner.
func ExamplePrompts() []string {
	return []string{
		"show me all projects",
		`create a new project called "My Project"`,
		"list user stories in project 1",
		`create a user story "As a user I want..." in project 1`,
	}
}

// Agent answers project management tasks by driving a tool-calling loop over
// the Taiga MCP tools. It keeps a chat history across tasks so follow-up
// questions can refer to earlier results.
type Agent struct {
	engine     engine.Engine
	registry   tools.ToolRegistry
	system     string
	toolConfig toolhelpers.ToolConfig
	history    conversation.Manager
}

type AgentOption func(*Agent)

func WithSystemPrompt(system string) AgentOption {
	return func(a *Agent) {
		a.system = system
	}
}

func WithToolConfig(config toolhelpers.ToolConfig) AgentOption {
	return func(a *Agent) {
		a.toolConfig = config
	}
}

func NewAgent(eng engine.Engine, registry tools.ToolRegistry, taigaSettings settings.TaigaSettings, options ...AgentOption) *Agent {
	ret := &Agent{
		engine:     eng,
		registry:   registry,
		system:     SystemPrompt(taigaSettings),
		toolConfig: toolhelpers.NewToolConfig(),
		history:    conversation.NewManager(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Run executes a single task. The returned answer is also recorded in the
// chat history together with the task.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	if input == "" {
		return "", errors.New("task must not be empty")
	}

	history := a.history.GetConversation()
	log.Debug().Str("input", input).Int("history_len", len(history)).Msg("taiga agent task started")

	messages := conversation.Conversation{
		conversation.NewChatMessage(conversation.RoleSystem, a.system),
	}
	messages = append(messages, history...)
	messages = append(messages, conversation.NewChatMessage(conversation.RoleUser, input))

	result, err := toolhelpers.RunToolCallingLoop(ctx, a.engine, messages, a.registry, a.toolConfig)
	if err != nil {
		a.recordExchange(input, fmt.Sprintf("Got error: %s", err))
		return "", err
	}

	answer, ok := result.LastAssistantText()
	if !ok {
		err := errors.New("agent produced no answer")
		a.recordExchange(input, fmt.Sprintf("Got error: %s", err))
		return "", err
	}

	a.recordExchange(input, answer)
	return answer, nil
}

// History returns the recorded chat history so far.
func (a *Agent) History() conversation.Conversation {
	return a.history.GetConversation()
}

func (a *Agent) recordExchange(input string, answer string) {
	a.history.AppendMessages(
		conversation.NewChatMessage(conversation.RoleUser, input),
		conversation.NewChatMessage(conversation.RoleAssistant, answer),
	)
}
