package claude

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/conversation"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/events"
)

const defaultMaxTokens = 4096

// Settings configures the Claude engine.
type Settings struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// ClaudeEngine implements the Engine interface for the Anthropic Messages API.
type ClaudeEngine struct {
	settings Settings
	config   *engine.Config
	tools    []Tool
}

func NewEngine(settings Settings, tools []Tool, options ...engine.Option) (*ClaudeEngine, error) {
	if settings.APIKey == "" {
		return nil, errors.New("no API key for claude")
	}
	if settings.Model == "" {
		return nil, errors.New("no model for claude")
	}
	if settings.MaxTokens == 0 {
		settings.MaxTokens = defaultMaxTokens
	}

	config, err := engine.NewConfig(options...)
	if err != nil {
		return nil, err
	}

	return &ClaudeEngine{
		settings: settings,
		config:   config,
		tools:    tools,
	}, nil
}

// RunInference processes a conversation using the Claude API, streaming
// progress through the configured sinks, and returns the conversation extended
// with the assistant's messages.
func (e *ClaudeEngine) RunInference(
	ctx context.Context,
	messages conversation.Conversation,
) (conversation.Conversation, error) {
	log.Debug().Int("num_messages", len(messages)).Str("model", e.settings.Model).Msg("claude RunInference started")

	client := NewClient(e.settings.APIKey, e.settings.BaseURL)

	req, err := makeMessageRequest(e.settings, e.tools, messages)
	if err != nil {
		return nil, err
	}

	metadata := events.EventMetadata{
		ID: conversation.NewNodeID().UUID(),
		LLMInferenceData: events.LLMInferenceData{
			Model: req.Model,
		},
	}

	eventCh, err := client.StreamMessage(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("claude streaming request failed")
		e.config.PublishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}

	merger := NewContentBlockMerger(metadata)

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("claude streaming cancelled by context")
			e.config.PublishEvent(events.NewInterruptEvent(metadata, merger.Text()))
			return nil, ctx.Err()

		case event, ok := <-eventCh:
			if !ok {
				return e.finishInference(messages, merger)
			}

			chatEvents, err := merger.Add(event)
			if err != nil {
				log.Error().Err(err).Str("event_type", string(event.Type)).Msg("claude stream merge failed")
				e.config.PublishEvent(events.NewErrorEvent(metadata, err))
				return nil, err
			}
			for _, chatEvent := range chatEvents {
				e.config.PublishEvent(chatEvent)
			}
		}
	}
}

func (e *ClaudeEngine) finishInference(
	messages conversation.Conversation,
	merger *ContentBlockMerger,
) (conversation.Conversation, error) {
	if apiErr := merger.Error(); apiErr != nil {
		return nil, errors.New(apiErr.Message)
	}

	response := merger.Response()
	if response == nil {
		return nil, errors.New("claude stream ended without a response")
	}

	result := append(conversation.Conversation{}, messages...)

	if text := response.FullText(); text != "" {
		result = append(result, conversation.NewChatMessage(conversation.RoleAssistant, text))
	}
	for _, toolUse := range response.ToolUses() {
		result = append(result, conversation.NewMessage(&conversation.ToolUseContent{
			ToolID: toolUse.ID,
			Name:   toolUse.Name,
			Input:  toolUse.Input,
		}))
	}

	log.Debug().
		Str("stop_reason", response.StopReason).
		Int("output_tokens", response.Usage.OutputTokens).
		Msg("claude RunInference completed")
	return result, nil
}

// makeMessageRequest converts a conversation into a Messages API request.
// System messages are concatenated into the request's system prompt.
func makeMessageRequest(settings Settings, tools []Tool, messages conversation.Conversation) (*MessageRequest, error) {
	var systemParts []string
	var apiMessages []Message

	appendBlock := func(role string, block ContentBlock) {
		if n := len(apiMessages); n > 0 && apiMessages[n-1].Role == role {
			apiMessages[n-1].Content = append(apiMessages[n-1].Content, block)
			return
		}
		apiMessages = append(apiMessages, Message{Role: role, Content: []ContentBlock{block}})
	}

	for _, msg := range messages {
		switch content := msg.Content.(type) {
		case *conversation.ChatMessageContent:
			switch content.Role {
			case conversation.RoleSystem:
				systemParts = append(systemParts, content.Text)
			case conversation.RoleUser:
				appendBlock("user", NewTextContent(content.Text))
			case conversation.RoleAssistant:
				appendBlock("assistant", NewTextContent(content.Text))
			default:
				return nil, errors.Errorf("unsupported chat role: %s", content.Role)
			}

		case *conversation.ToolUseContent:
			input := content.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			appendBlock("assistant", NewToolUseContent(content.ToolID, content.Name, input))

		case *conversation.ToolResultContent:
			resultText := content.Result
			isError := content.Error != ""
			if isError {
				resultText = content.Error
			}
			appendBlock("user", NewToolResultContent(content.ToolID, resultText, isError))

		default:
			return nil, errors.Errorf("unsupported message content type: %s", msg.Content.ContentType())
		}
	}

	if len(apiMessages) == 0 {
		return nil, errors.New("conversation contains no sendable messages")
	}

	return &MessageRequest{
		Model:     settings.Model,
		Messages:  apiMessages,
		MaxTokens: settings.MaxTokens,
		System:    strings.Join(systemParts, "\n\n"),
		Tools:     tools,
	}, nil
}

var _ engine.Engine = (*ClaudeEngine)(nil)
