package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/tools"
)

// Client wraps an MCP client session with lazy connection. It exposes the
// server's tools both directly and as entries in a tool registry.
type Client struct {
	impl      *mcpsdk.Client
	transport mcpsdk.Transport
	session   *mcpsdk.ClientSession

	once       sync.Once
	connectErr error
}

// NewSSEClient creates a client that connects to an MCP server over SSE.
func NewSSEClient(endpoint string) *Client {
	return NewClient(&mcpsdk.SSEClientTransport{Endpoint: endpoint})
}

// NewClient creates a client over an explicit transport.
func NewClient(transport mcpsdk.Transport) *Client {
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "chainchat", Version: "dev"}, nil)
	return &Client{
		impl:      impl,
		transport: transport,
	}
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.once.Do(func() {
		session, err := c.impl.Connect(ctx, c.transport, nil)
		if err != nil {
			c.connectErr = errors.Wrap(err, "could not connect to MCP server")
			return
		}
		c.session = session
		log.Debug().Msg("connected to MCP server")
	})
	return c.connectErr
}

// ToolDescriptor describes a tool exposed by the MCP server.
type ToolDescriptor struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ListTools fetches the server's tool list.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	var ret []ToolDescriptor
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, errors.Wrap(err, "could not list MCP tools")
		}

		schema, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, errors.Wrapf(err, "could not encode schema of MCP tool %s", tool.Name)
		}
		ret = append(ret, ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Schema:      schema,
		})
	}
	return ret, nil
}

// CallTool invokes a tool on the server and returns the concatenated text
// content of the result. A result flagged as an error is returned as an error.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return "", err
	}

	log.Debug().Str("tool", name).Msg("calling MCP tool")
	result, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "MCP tool %s failed", name)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return "", errors.Errorf("MCP tool %s returned an error: %s", name, text)
	}
	return text, nil
}

// RegisterTools lists the server's tools and registers each one in the
// registry, proxying execution back to the server.
func (c *Client) RegisterTools(ctx context.Context, registry tools.ToolRegistry) error {
	descriptors, err := c.ListTools(ctx)
	if err != nil {
		return err
	}

	for _, descriptor := range descriptors {
		name := descriptor.Name
		tool := tools.NewToolFromHandler(name, descriptor.Description, descriptor.Schema,
			func(ctx context.Context, args json.RawMessage) (interface{}, error) {
				return c.CallTool(ctx, name, args)
			})
		if err := registry.RegisterTool(name, *tool); err != nil {
			return errors.Wrapf(err, "could not register MCP tool %s", name)
		}
	}

	log.Info().Int("num_tools", len(descriptors)).Msg("registered MCP tools")
	return nil
}

// Close shuts down the underlying session, if any.
func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

func flattenContent(content []mcpsdk.Content) string {
	var parts []string
	for _, block := range content {
		if text, ok := block.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}
