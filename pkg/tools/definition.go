package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Handler executes a tool call with raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, error)

// ToolDefinition describes a tool that can be called by a model. Parameters
// holds the JSON schema of the tool input.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Handler     Handler         `json:"-"`
}

// ToolCall represents a request to execute a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult represents the result of a tool execution. Result holds the
// JSON-encoded return value of the tool.
type ToolResult struct {
	ID     string `json:"id"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// ToolError categorizes a failed tool execution.
type ToolError struct {
	ToolName string `json:"tool_name"`
	ToolID   string `json:"tool_id,omitempty"`
	Type     string `json:"type"` // "validation", "execution", "not_found"
	Message  string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error [%s]: %s", e.Type, e.Message)
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// NewToolFromFunc creates a ToolDefinition from a Go function. Supported
// signatures:
//
//	func(Input) (Result, error)
//	func(context.Context, Input) (Result, error)
//
// The input schema is reflected from the Input struct.
func NewToolFromFunc(name string, description string, fn interface{}) (*ToolDefinition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}

	if funcType.NumOut() != 2 || !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("function must return (result, error)")
	}

	var inputType reflect.Type
	takesContext := false
	switch funcType.NumIn() {
	case 1:
		inputType = funcType.In(0)
	case 2:
		if funcType.In(0) != contextType {
			return nil, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		takesContext = true
		inputType = funcType.In(1)
	default:
		return nil, errors.New("function must take (Input) or (context.Context, Input)")
	}
	if inputType.Kind() != reflect.Struct {
		return nil, errors.New("tool input must be a struct")
	}

	schema, err := reflectSchema(inputType)
	if err != nil {
		return nil, err
	}

	funcValue := reflect.ValueOf(fn)
	handler := func(ctx context.Context, args json.RawMessage) (interface{}, error) {
		input := reflect.New(inputType)
		if len(args) > 0 {
			if err := json.Unmarshal(args, input.Interface()); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal arguments")
			}
		}

		callArgs := []reflect.Value{input.Elem()}
		if takesContext {
			callArgs = append([]reflect.Value{reflect.ValueOf(ctx)}, callArgs...)
		}

		results := funcValue.Call(callArgs)
		if errValue := results[1].Interface(); errValue != nil {
			return results[0].Interface(), errValue.(error)
		}
		return results[0].Interface(), nil
	}

	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Handler:     handler,
	}, nil
}

// NewToolFromHandler creates a ToolDefinition from an explicit JSON schema and
// handler, for tools whose schema comes from elsewhere (e.g. an MCP server).
func NewToolFromHandler(name string, description string, schema json.RawMessage, handler Handler) *ToolDefinition {
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Handler:     handler,
	}
}

func reflectSchema(inputType reflect.Type) (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
	}
	schema := reflector.Reflect(reflect.New(inputType).Elem().Interface())
	schema.Version = ""

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tool schema")
	}
	return data, nil
}
