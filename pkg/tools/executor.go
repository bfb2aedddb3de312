package tools

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// ExecuteToolCall looks up the named tool in the registry and runs it. Errors
// are folded into the returned ToolResult so that the model can see them.
func ExecuteToolCall(ctx context.Context, registry ToolRegistry, call ToolCall) ToolResult {
	log.Debug().Str("tool", call.Name).Str("tool_id", call.ID).Msg("executing tool call")

	tool, err := registry.GetTool(call.Name)
	if err != nil {
		toolErr := &ToolError{ToolName: call.Name, ToolID: call.ID, Type: "not_found", Message: err.Error()}
		return ToolResult{ID: call.ID, Error: toolErr.Error()}
	}

	result, err := tool.Handler(ctx, call.Arguments)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		toolErr := &ToolError{ToolName: call.Name, ToolID: call.ID, Type: "execution", Message: err.Error()}
		return ToolResult{ID: call.ID, Error: toolErr.Error()}
	}

	encoded, err := encodeResult(result)
	if err != nil {
		toolErr := &ToolError{ToolName: call.Name, ToolID: call.ID, Type: "execution", Message: err.Error()}
		return ToolResult{ID: call.ID, Error: toolErr.Error()}
	}

	return ToolResult{ID: call.ID, Result: encoded}
}

func encodeResult(result interface{}) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
