package ollama

import (
	"context"
	"os"

	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/conversation"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/events"
)

// Settings configures the Ollama engine.
type Settings struct {
	BaseURL string
	Model   string
}

// OllamaEngine implements the Engine interface against a local Ollama server.
type OllamaEngine struct {
	client   *api.Client
	settings Settings
	config   *engine.Config
}

func NewEngine(settings Settings, options ...engine.Option) (*OllamaEngine, error) {
	if settings.BaseURL == "" {
		return nil, errors.New("no base URL for ollama")
	}
	if settings.Model == "" {
		return nil, errors.New("no model for ollama")
	}

	// The api package only builds clients from OLLAMA_HOST.
	if err := os.Setenv("OLLAMA_HOST", settings.BaseURL); err != nil {
		return nil, errors.Wrap(err, "could not set OLLAMA_HOST")
	}
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ollama base URL %s", settings.BaseURL)
	}

	config, err := engine.NewConfig(options...)
	if err != nil {
		return nil, err
	}

	return &OllamaEngine{
		client:   client,
		settings: settings,
		config:   config,
	}, nil
}

// RunInference processes a conversation using the Ollama chat API, streaming
// progress through the configured sinks.
func (e *OllamaEngine) RunInference(
	ctx context.Context,
	messages conversation.Conversation,
) (conversation.Conversation, error) {
	log.Debug().Int("num_messages", len(messages)).Str("model", e.settings.Model).Msg("ollama RunInference started")

	ollamaMessages := []api.Message{}
	for _, msg := range messages {
		switch content := msg.Content.(type) {
		case *conversation.ChatMessageContent:
			ollamaMessages = append(ollamaMessages, api.Message{
				Role:    string(content.Role),
				Content: content.Text,
			})
		}
	}
	if len(ollamaMessages) == 0 {
		return nil, errors.New("conversation contains no sendable messages")
	}

	metadata := events.EventMetadata{
		ID: conversation.NewNodeID().UUID(),
		LLMInferenceData: events.LLMInferenceData{
			Model: e.settings.Model,
		},
	}

	stream := true
	req := &api.ChatRequest{
		Model:    e.settings.Model,
		Messages: ollamaMessages,
		Stream:   &stream,
	}

	e.config.PublishEvent(events.NewStartEvent(metadata))

	completion := ""
	err := e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Done {
			e.config.PublishEvent(events.NewFinalEvent(metadata, completion))
			return nil
		}

		completion += resp.Message.Content
		e.config.PublishEvent(events.NewPartialCompletionEvent(metadata, resp.Message.Content, completion))
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("ollama chat request failed")
		e.config.PublishEvent(events.NewErrorEvent(metadata, err))
		return nil, err
	}

	log.Debug().Int("completion_len", len(completion)).Msg("ollama RunInference completed")

	result := append(conversation.Conversation{}, messages...)
	result = append(result, conversation.NewChatMessage(conversation.RoleAssistant, completion))
	return result, nil
}

var _ engine.Engine = (*OllamaEngine)(nil)
