package openai

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/huyly0909/chainchat/pkg/conversation"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/events"
)

// Settings configures the OpenAI engine.
type Settings struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIEngine implements the Engine interface for the OpenAI chat completion
// API, including OpenAI-compatible endpoints through a custom base URL.
type OpenAIEngine struct {
	client   *go_openai.Client
	settings Settings
	config   *engine.Config
	tools    []go_openai.Tool
}

func NewEngine(settings Settings, tools []go_openai.Tool, options ...engine.Option) (*OpenAIEngine, error) {
	if settings.APIKey == "" {
		return nil, errors.New("no API key for openai")
	}
	if settings.Model == "" {
		return nil, errors.New("no model for openai")
	}

	clientConfig := go_openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		clientConfig.BaseURL = settings.BaseURL
	}

	config, err := engine.NewConfig(options...)
	if err != nil {
		return nil, err
	}

	return &OpenAIEngine{
		client:   go_openai.NewClientWithConfig(clientConfig),
		settings: settings,
		config:   config,
		tools:    tools,
	}, nil
}

// RunInference processes a conversation using the OpenAI API. Plain chat
// requests stream token by token; requests carrying tool definitions use a
// single round trip so that tool calls arrive fully formed.
func (e *OpenAIEngine) RunInference(
	ctx context.Context,
	messages conversation.Conversation,
) (conversation.Conversation, error) {
	log.Debug().Int("num_messages", len(messages)).Str("model", e.settings.Model).Msg("openai RunInference started")

	openaiMessages, err := makeChatMessages(messages)
	if err != nil {
		return nil, err
	}

	metadata := events.EventMetadata{
		ID: conversation.NewNodeID().UUID(),
		LLMInferenceData: events.LLMInferenceData{
			Model: e.settings.Model,
		},
	}

	req := go_openai.ChatCompletionRequest{
		Model:    e.settings.Model,
		Messages: openaiMessages,
		Tools:    e.tools,
	}

	if len(e.tools) > 0 {
		return e.runWithTools(ctx, messages, req, metadata)
	}
	return e.runStreaming(ctx, messages, req, metadata)
}

func (e *OpenAIEngine) runStreaming(
	ctx context.Context,
	messages conversation.Conversation,
	req go_openai.ChatCompletionRequest,
	metadata events.EventMetadata,
) (conversation.Conversation, error) {
	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		e.config.PublishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}
	defer stream.Close()

	e.config.PublishEvent(events.NewStartEvent(metadata))

	completion := ""
	for {
		select {
		case <-ctx.Done():
			e.config.PublishEvent(events.NewInterruptEvent(metadata, completion))
			return nil, ctx.Err()
		default:
		}

		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Error().Err(err).Msg("openai stream receive failed")
			e.config.PublishEvent(events.NewErrorEvent(metadata, err))
			return nil, err
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		completion += delta
		e.config.PublishEvent(events.NewPartialCompletionEvent(metadata, delta, completion))
	}

	e.config.PublishEvent(events.NewFinalEvent(metadata, completion))
	log.Debug().Int("completion_len", len(completion)).Msg("openai RunInference completed")

	result := append(conversation.Conversation{}, messages...)
	result = append(result, conversation.NewChatMessage(conversation.RoleAssistant, completion))
	return result, nil
}

func (e *OpenAIEngine) runWithTools(
	ctx context.Context,
	messages conversation.Conversation,
	req go_openai.ChatCompletionRequest,
	metadata events.EventMetadata,
) (conversation.Conversation, error) {
	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		e.config.PublishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err := errors.New("openai returned no choices")
		e.config.PublishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}

	choice := resp.Choices[0].Message
	result := append(conversation.Conversation{}, messages...)

	if choice.Content != "" {
		e.config.PublishEvent(events.NewFinalEvent(metadata, choice.Content))
		result = append(result, conversation.NewChatMessage(conversation.RoleAssistant, choice.Content))
	}

	for _, toolCall := range choice.ToolCalls {
		e.config.PublishEvent(events.NewToolCallEvent(metadata, events.ToolCall{
			ID:    toolCall.ID,
			Name:  toolCall.Function.Name,
			Input: toolCall.Function.Arguments,
		}))
		result = append(result, conversation.NewMessage(&conversation.ToolUseContent{
			ToolID: toolCall.ID,
			Name:   toolCall.Function.Name,
			Input:  json.RawMessage(toolCall.Function.Arguments),
		}))
	}

	return result, nil
}

// makeChatMessages converts a conversation into OpenAI chat messages.
func makeChatMessages(messages conversation.Conversation) ([]go_openai.ChatCompletionMessage, error) {
	ret := []go_openai.ChatCompletionMessage{}
	for _, msg := range messages {
		switch content := msg.Content.(type) {
		case *conversation.ChatMessageContent:
			ret = append(ret, go_openai.ChatCompletionMessage{
				Role:    string(content.Role),
				Content: content.Text,
			})

		case *conversation.ToolUseContent:
			ret = append(ret, go_openai.ChatCompletionMessage{
				Role: go_openai.ChatMessageRoleAssistant,
				ToolCalls: []go_openai.ToolCall{
					{
						ID:   content.ToolID,
						Type: go_openai.ToolTypeFunction,
						Function: go_openai.FunctionCall{
							Name:      content.Name,
							Arguments: string(content.Input),
						},
					},
				},
			})

		case *conversation.ToolResultContent:
			text := content.Result
			if content.Error != "" {
				text = content.Error
			}
			ret = append(ret, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    text,
				ToolCallID: content.ToolID,
			})

		default:
			return nil, errors.Errorf("unsupported message content type: %s", msg.Content.ContentType())
		}
	}

	if len(ret) == 0 {
		return nil, errors.New("conversation contains no sendable messages")
	}

	return ret, nil
}

var _ engine.Engine = (*OpenAIEngine)(nil)
