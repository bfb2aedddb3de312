package claude

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huyly0909/chainchat/pkg/conversation"
	"github.com/huyly0909/chainchat/pkg/events"
)

func testConversation() conversation.Conversation {
	return conversation.Conversation{
		conversation.NewChatMessage(conversation.RoleSystem, "You are a helpful assistant."),
		conversation.NewChatMessage(conversation.RoleUser, "Hi"),
		conversation.NewChatMessage(conversation.RoleAssistant, "Hello, how can I help?"),
	}
}

func appendToolExchange(conv conversation.Conversation) conversation.Conversation {
	conv = append(conv, conversation.NewMessage(&conversation.ToolUseContent{
		ToolID: "toolu_1",
		Name:   "list_projects",
		Input:  []byte(`{"page":1}`),
	}))
	conv = append(conv, conversation.NewMessage(&conversation.ToolResultContent{
		ToolID: "toolu_1",
		Result: `["proj-a"]`,
	}))
	return conv
}

func newTestMerger() *ContentBlockMerger {
	return NewContentBlockMerger(events.EventMetadata{ID: uuid.New()})
}

func addEvents(t *testing.T, merger *ContentBlockMerger, streamEvents ...StreamingEvent) []events.Event {
	t.Helper()
	var published []events.Event
	for _, ev := range streamEvents {
		chatEvents, err := merger.Add(ev)
		require.NoError(t, err)
		published = append(published, chatEvents...)
	}
	return published
}

func messageStart() StreamingEvent {
	return StreamingEvent{
		Type: MessageStartType,
		Message: &MessageResponse{
			ID:    "msg_123",
			Model: "claude-3-haiku-20240307",
			Role:  "assistant",
			Usage: Usage{InputTokens: 10},
		},
	}
}

func TestMergerTextStream(t *testing.T) {
	merger := newTestMerger()

	published := addEvents(t, merger,
		messageStart(),
		StreamingEvent{Type: ContentBlockStartType, Index: 0, ContentBlock: &ContentBlock{Type: ContentTypeText}},
		StreamingEvent{Type: ContentBlockDeltaType, Index: 0, Delta: &Delta{Type: TextDeltaType, Text: "Hello"}},
		StreamingEvent{Type: ContentBlockDeltaType, Index: 0, Delta: &Delta{Type: TextDeltaType, Text: " world"}},
		StreamingEvent{Type: ContentBlockStopType, Index: 0},
		StreamingEvent{Type: MessageDeltaType, Delta: &Delta{StopReason: "end_turn"}, Usage: &Usage{InputTokens: 10, OutputTokens: 2}},
		StreamingEvent{Type: MessageStopType},
	)

	response := merger.Response()
	require.NotNil(t, response)
	assert.Equal(t, "Hello world", response.FullText())
	assert.Equal(t, "end_turn", response.StopReason)
	assert.Equal(t, 2, response.Usage.OutputTokens)

	require.Len(t, published, 4)
	assert.Equal(t, events.EventTypeStart, published[0].Type())

	partial, ok := published[1].(*events.EventPartialCompletion)
	require.True(t, ok)
	assert.Equal(t, "Hello", partial.Delta)
	assert.Equal(t, "Hello", partial.Completion)

	partial, ok = published[2].(*events.EventPartialCompletion)
	require.True(t, ok)
	assert.Equal(t, " world", partial.Delta)
	assert.Equal(t, "Hello world", partial.Completion)

	final, ok := published[3].(*events.EventFinal)
	require.True(t, ok)
	assert.Equal(t, "Hello world", final.Text)
}

func TestMergerToolUseStream(t *testing.T) {
	merger := newTestMerger()

	published := addEvents(t, merger,
		messageStart(),
		StreamingEvent{Type: ContentBlockStartType, Index: 0, ContentBlock: &ContentBlock{
			Type: ContentTypeToolUse,
			ID:   "toolu_1",
			Name: "list_projects",
		}},
		StreamingEvent{Type: ContentBlockDeltaType, Index: 0, Delta: &Delta{Type: InputJSONDeltaType, PartialJSON: `{"page"`}},
		StreamingEvent{Type: ContentBlockDeltaType, Index: 0, Delta: &Delta{Type: InputJSONDeltaType, PartialJSON: `:1}`}},
		StreamingEvent{Type: ContentBlockStopType, Index: 0},
		StreamingEvent{Type: MessageDeltaType, Delta: &Delta{StopReason: "tool_use"}},
		StreamingEvent{Type: MessageStopType},
	)

	response := merger.Response()
	require.NotNil(t, response)
	toolUses := response.ToolUses()
	require.Len(t, toolUses, 1)
	assert.Equal(t, "toolu_1", toolUses[0].ID)
	assert.Equal(t, "list_projects", toolUses[0].Name)
	assert.JSONEq(t, `{"page":1}`, string(toolUses[0].Input))

	require.Len(t, published, 3)
	toolCall, ok := published[1].(*events.EventToolCall)
	require.True(t, ok)
	assert.Equal(t, "list_projects", toolCall.ToolCall.Name)
	assert.Equal(t, `{"page":1}`, toolCall.ToolCall.Input)
}

func TestMergerEmptyToolInput(t *testing.T) {
	merger := newTestMerger()

	addEvents(t, merger,
		messageStart(),
		StreamingEvent{Type: ContentBlockStartType, Index: 0, ContentBlock: &ContentBlock{
			Type: ContentTypeToolUse,
			ID:   "toolu_2",
			Name: "list_projects",
		}},
		StreamingEvent{Type: ContentBlockStopType, Index: 0},
		StreamingEvent{Type: MessageStopType},
	)

	toolUses := merger.Response().ToolUses()
	require.Len(t, toolUses, 1)
	assert.JSONEq(t, `{}`, string(toolUses[0].Input))
}

func TestMergerErrors(t *testing.T) {
	merger := newTestMerger()

	_, err := merger.Add(StreamingEvent{Type: ContentBlockDeltaType, Index: 0, Delta: &Delta{Type: TextDeltaType, Text: "x"}})
	assert.Error(t, err)

	_, err = merger.Add(messageStart())
	require.NoError(t, err)

	_, err = merger.Add(StreamingEvent{Type: ContentBlockDeltaType, Index: 3, Delta: &Delta{Type: TextDeltaType, Text: "x"}})
	assert.Error(t, err)

	published, err := merger.Add(StreamingEvent{Type: ErrorType, Error: &ErrorDetail{Type: "overloaded_error", Message: "overloaded"}})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTypeError, published[0].Type())
	require.NotNil(t, merger.Error())
	assert.Equal(t, "overloaded", merger.Error().Message)
}

func TestMakeMessageRequest(t *testing.T) {
	settings := Settings{APIKey: "k", Model: "claude-3-haiku-20240307", MaxTokens: 1024}

	t.Run("system prompt and role mapping", func(t *testing.T) {
		req, err := makeMessageRequest(settings, nil, testConversation())
		require.NoError(t, err)

		assert.Equal(t, "You are a helpful assistant.", req.System)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "assistant", req.Messages[1].Role)
	})

	t.Run("tool results become user blocks", func(t *testing.T) {
		conv := testConversation()
		conv = appendToolExchange(conv)

		req, err := makeMessageRequest(settings, nil, conv)
		require.NoError(t, err)

		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, "user", last.Role)
		require.Len(t, last.Content, 1)
		assert.Equal(t, ContentTypeToolResult, last.Content[0].Type)
		assert.Equal(t, "toolu_1", last.Content[0].ToolUseID)
	})

	t.Run("empty conversation is rejected", func(t *testing.T) {
		_, err := makeMessageRequest(settings, nil, nil)
		assert.Error(t, err)
	})
}
