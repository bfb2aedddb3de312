package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerAppendIsOrdered(t *testing.T) {
	manager := NewManager()

	manager.AppendMessages(
		NewChatMessage(RoleUser, "Hello"),
		NewChatMessage(RoleAssistant, "Hi there!"),
	)
	manager.AppendMessages(NewChatMessage(RoleUser, "How are you?"))

	messages := manager.GetConversation()
	require.Len(t, messages, 3)
	assert.Equal(t, "Hello", messages[0].Content.String())
	assert.Equal(t, "Hi there!", messages[1].Content.String())
	assert.Equal(t, "How are you?", messages[2].Content.String())
}

func TestManagerGetConversationReturnsCopy(t *testing.T) {
	manager := NewManager(WithMessages(NewChatMessage(RoleUser, "Hello")))

	before := manager.GetConversation()
	manager.AppendMessages(NewChatMessage(RoleAssistant, "Hi there!"))

	assert.Len(t, before, 1)
	assert.Len(t, manager.GetConversation(), 2)
}

func TestManagerGetMessage(t *testing.T) {
	msg := NewChatMessage(RoleUser, "Hello")
	manager := NewManager(WithMessages(msg))

	found, ok := manager.GetMessage(msg.ID)
	require.True(t, ok)
	assert.Equal(t, "Hello", found.Content.String())

	_, ok = manager.GetMessage(NewNodeID())
	assert.False(t, ok)
}

func TestGetSinglePrompt(t *testing.T) {
	single := Conversation{NewChatMessage(RoleUser, "Hello")}
	assert.Equal(t, "Hello", single.GetSinglePrompt())

	multi := Conversation{
		NewChatMessage(RoleSystem, "Be helpful."),
		NewChatMessage(RoleUser, "Hello"),
	}
	assert.Equal(t, "[system]: Be helpful.\n[user]: Hello\n", multi.GetSinglePrompt())
}

func TestLastAssistantText(t *testing.T) {
	messages := Conversation{
		NewChatMessage(RoleUser, "Hello"),
		NewChatMessage(RoleAssistant, "Hi there!"),
		NewChatMessage(RoleUser, "Bye"),
	}

	text, ok := messages.LastAssistantText()
	require.True(t, ok)
	assert.Equal(t, "Hi there!", text)

	_, ok = Conversation{NewChatMessage(RoleUser, "Hello")}.LastAssistantText()
	assert.False(t, ok)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := NewChatMessage(RoleAssistant, "Hi there!")

	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(b, &decoded))

	content, ok := decoded.Content.(*ChatMessageContent)
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, content.Role)
	assert.Equal(t, "Hi there!", content.Text)
}

func TestToolUseMessageJSONRoundTrip(t *testing.T) {
	msg := NewMessage(&ToolUseContent{
		ToolID: "tool-1",
		Name:   "list_projects",
		Input:  json.RawMessage(`{"session_id":"abc"}`),
	})

	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(b, &decoded))

	content, ok := decoded.Content.(*ToolUseContent)
	require.True(t, ok)
	assert.Equal(t, "list_projects", content.Name)
	assert.JSONEq(t, `{"session_id":"abc"}`, string(content.Input))
}
