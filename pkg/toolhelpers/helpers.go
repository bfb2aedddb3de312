package toolhelpers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/conversation"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/events"
	"github.com/huyly0909/chainchat/pkg/tools"
)

const defaultMaxIterations = 5

// ToolConfig controls the tool-calling loop.
type ToolConfig struct {
	// MaxIterations bounds the number of inference rounds.
	MaxIterations int
	// ExecutionTimeout bounds a single tool execution. Zero means no limit
	// beyond the loop context.
	ExecutionTimeout time.Duration
	// Sinks receive tool result events as tools complete.
	Sinks []events.EventSink
}

func NewToolConfig() ToolConfig {
	return ToolConfig{
		MaxIterations: defaultMaxIterations,
	}
}

func (c ToolConfig) WithMaxIterations(n int) ToolConfig {
	c.MaxIterations = n
	return c
}

func (c ToolConfig) WithExecutionTimeout(d time.Duration) ToolConfig {
	c.ExecutionTimeout = d
	return c
}

func (c ToolConfig) WithSink(sink events.EventSink) ToolConfig {
	c.Sinks = append(c.Sinks, sink)
	return c
}

// RunToolCallingLoop alternates between inference and tool execution until the
// model stops requesting tools or MaxIterations is reached. The returned
// conversation contains all intermediate tool calls and results.
func RunToolCallingLoop(
	ctx context.Context,
	eng engine.Engine,
	messages conversation.Conversation,
	registry tools.ToolRegistry,
	config ToolConfig,
) (conversation.Conversation, error) {
	maxIterations := config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	current := messages
	for iteration := 0; iteration < maxIterations; iteration++ {
		log.Debug().Int("iteration", iteration).Int("num_messages", len(current)).Msg("tool loop inference round")

		result, err := eng.RunInference(ctx, current)
		if err != nil {
			return nil, err
		}
		current = result

		pending := extractPendingToolCalls(current)
		if len(pending) == 0 {
			log.Debug().Int("iterations_used", iteration+1).Msg("tool loop completed")
			return current, nil
		}

		for _, call := range pending {
			result := executeWithTimeout(ctx, registry, call, config.ExecutionTimeout)
			publishToolResult(config.Sinks, result)
			current = append(current, conversation.NewMessage(&conversation.ToolResultContent{
				ToolID: result.ID,
				Result: result.Result,
				Error:  result.Error,
			}))
		}
	}

	log.Warn().Int("max_iterations", maxIterations).Msg("tool loop hit iteration limit")
	return current, nil
}

func executeWithTimeout(
	ctx context.Context,
	registry tools.ToolRegistry,
	call tools.ToolCall,
	timeout time.Duration,
) tools.ToolResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return tools.ExecuteToolCall(ctx, registry, call)
}

func publishToolResult(sinks []events.EventSink, result tools.ToolResult) {
	if len(sinks) == 0 {
		return
	}
	event := events.NewToolResultEvent(events.EventMetadata{ID: uuid.New()}, events.ToolResult{
		ID:     result.ID,
		Result: result.Result,
		Error:  result.Error,
	})
	for _, sink := range sinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Error().Err(err).Msg("failed to publish tool result event")
		}
	}
}

// extractPendingToolCalls returns tool-use messages that have no matching
// tool-result message yet, in conversation order.
func extractPendingToolCalls(messages conversation.Conversation) []tools.ToolCall {
	answered := map[string]bool{}
	for _, msg := range messages {
		if content, ok := msg.Content.(*conversation.ToolResultContent); ok {
			answered[content.ToolID] = true
		}
	}

	var pending []tools.ToolCall
	for _, msg := range messages {
		if content, ok := msg.Content.(*conversation.ToolUseContent); ok && !answered[content.ToolID] {
			pending = append(pending, tools.ToolCall{
				ID:        content.ToolID,
				Name:      content.Name,
				Arguments: content.Input,
			})
		}
	}
	return pending
}
