package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	A int `json:"a"`
	B int `json:"b"`
}

func addTool(input addInput) (int, error) {
	return input.A + input.B, nil
}

func failingTool(input addInput) (int, error) {
	return 0, errors.New("out of range")
}

func TestNewToolFromFunc(t *testing.T) {
	tool, err := NewToolFromFunc("add", "Adds two numbers", addTool)
	require.NoError(t, err)

	assert.Equal(t, "add", tool.Name)
	assert.Equal(t, "Adds two numbers", tool.Description)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(tool.Parameters, &schema))
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")

	result, err := tool.Handler(context.Background(), json.RawMessage(`{"a":2,"b":3}`))
	require.NoError(t, err)
	assert.Equal(t, 5, result)
}

func TestNewToolFromFuncWithContext(t *testing.T) {
	tool, err := NewToolFromFunc("add", "Adds two numbers", func(ctx context.Context, input addInput) (int, error) {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return input.A + input.B, nil
	})
	require.NoError(t, err)

	result, err := tool.Handler(context.Background(), json.RawMessage(`{"a":1,"b":1}`))
	require.NoError(t, err)
	assert.Equal(t, 2, result)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tool.Handler(cancelled, json.RawMessage(`{"a":1,"b":1}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewToolFromFuncRejectsBadSignatures(t *testing.T) {
	_, err := NewToolFromFunc("bad", "", 42)
	assert.Error(t, err)

	_, err = NewToolFromFunc("bad", "", func(input addInput) int { return 0 })
	assert.Error(t, err)

	_, err = NewToolFromFunc("bad", "", func(a, b addInput) (int, error) { return 0, nil })
	assert.Error(t, err)

	_, err = NewToolFromFunc("bad", "", func(s string) (int, error) { return 0, nil })
	assert.Error(t, err)
}

func TestNewToolFromHandler(t *testing.T) {
	tool := NewToolFromHandler("echo", "Echoes input", nil, func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		return string(args), nil
	})

	assert.JSONEq(t, `{"type":"object"}`, string(tool.Parameters))

	result, err := tool.Handler(context.Background(), json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, result)
}

func TestRegistry(t *testing.T) {
	registry := NewInMemoryToolRegistry()

	tool, err := NewToolFromFunc("add", "Adds two numbers", addTool)
	require.NoError(t, err)
	require.NoError(t, registry.RegisterTool("add", *tool))

	assert.Equal(t, 1, registry.Count())

	got, err := registry.GetTool("add")
	require.NoError(t, err)
	assert.Equal(t, "add", got.Name)

	_, err = registry.GetTool("missing")
	assert.Error(t, err)

	err = registry.RegisterTool("other", *tool)
	assert.Error(t, err)

	err = registry.RegisterTool("", ToolDefinition{})
	assert.Error(t, err)

	require.NoError(t, registry.UnregisterTool("add"))
	assert.Equal(t, 0, registry.Count())
	assert.Error(t, registry.UnregisterTool("add"))
}

func TestRegistryListToolsSorted(t *testing.T) {
	registry := NewInMemoryToolRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		tool := NewToolFromHandler(name, "", nil, func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			return nil, nil
		})
		require.NoError(t, registry.RegisterTool(name, *tool))
	}

	listed := registry.ListTools()
	require.Len(t, listed, 3)
	assert.Equal(t, "alpha", listed[0].Name)
	assert.Equal(t, "mid", listed[1].Name)
	assert.Equal(t, "zeta", listed[2].Name)
}

func TestExecuteToolCall(t *testing.T) {
	registry := NewInMemoryToolRegistry()
	tool, err := NewToolFromFunc("add", "Adds two numbers", addTool)
	require.NoError(t, err)
	require.NoError(t, registry.RegisterTool("add", *tool))

	failing, err := NewToolFromFunc("fail", "Always fails", failingTool)
	require.NoError(t, err)
	require.NoError(t, registry.RegisterTool("fail", *failing))

	t.Run("success", func(t *testing.T) {
		result := ExecuteToolCall(context.Background(), registry, ToolCall{
			ID:        "tc-1",
			Name:      "add",
			Arguments: json.RawMessage(`{"a":2,"b":3}`),
		})
		assert.Equal(t, "tc-1", result.ID)
		assert.Empty(t, result.Error)
		assert.Equal(t, "5", result.Result)
	})

	t.Run("execution error is folded into result", func(t *testing.T) {
		result := ExecuteToolCall(context.Background(), registry, ToolCall{
			ID:   "tc-2",
			Name: "fail",
		})
		assert.Contains(t, result.Error, "out of range")
		assert.Contains(t, result.Error, "execution")
	})

	t.Run("unknown tool", func(t *testing.T) {
		result := ExecuteToolCall(context.Background(), registry, ToolCall{
			ID:   "tc-3",
			Name: "missing",
		})
		assert.Contains(t, result.Error, "not_found")
	})
}
