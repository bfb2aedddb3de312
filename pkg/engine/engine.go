package engine

import (
	"context"

	"github.com/huyly0909/chainchat/pkg/conversation"
)

// Engine defines the interface for running inference against an LLM provider.
type Engine interface {
	// RunInference runs the inference with the given conversation and returns
	// the conversation extended by the provider's response messages. Streaming
	// progress is reported through the event sinks configured on the engine.
	RunInference(ctx context.Context, messages conversation.Conversation) (conversation.Conversation, error)
}
