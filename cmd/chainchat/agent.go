package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/huyly0909/chainchat/pkg/mcp"
	"github.com/huyly0909/chainchat/pkg/providers/claude"
	"github.com/huyly0909/chainchat/pkg/repl"
	"github.com/huyly0909/chainchat/pkg/settings"
	"github.com/huyly0909/chainchat/pkg/taiga"
	"github.com/huyly0909/chainchat/pkg/tools"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Taiga project-management agent backed by an MCP tool server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd.Context())
	},
}

func runAgent(ctx context.Context) error {
	s, err := settings.Load()
	if err != nil {
		return err
	}
	if s.Claude.APIKey == "" {
		return errors.New("ANTHROPIC_API_KEY is not set")
	}

	fmt.Println("🔧 Setting up Taiga MCP Agent with SSE Transport...")
	fmt.Printf("📡 Connecting to SSE endpoint: %s\n", s.Taiga.MCPServerURL)

	client := mcp.NewSSEClient(s.Taiga.MCPServerURL)
	defer func() { _ = client.Close() }()

	registry := tools.NewInMemoryToolRegistry()
	if err := client.RegisterTools(ctx, registry); err != nil {
		return errors.Wrap(err, "could not load tools from the MCP server")
	}
	fmt.Printf("✅ Loaded %d tools from the MCP server\n", registry.Count())

	eng, err := claude.NewEngine(claude.Settings{
		APIKey:  s.Claude.APIKey,
		BaseURL: s.Claude.BaseURL,
		Model:   s.Taiga.Model,
	}, claude.ToolsFromDefinitions(registry.ListTools()))
	if err != nil {
		return err
	}

	agent := taiga.NewAgent(eng, registry, s.Taiga)

	fmt.Println("\n🎯 Taiga Agent ready! Example prompts:")
	for _, prompt := range taiga.ExamplePrompts() {
		fmt.Printf("  - %s\n", prompt)
	}
	fmt.Println()

	loop := repl.New(os.Stdin, os.Stdout,
		func(ctx context.Context, provider string, input string) (string, error) {
			return agent.Run(ctx, input)
		},
		repl.WithInputPrompt("Enter your task: "),
		repl.WithEmptyMessage(""),
		repl.WithThinking(func(w io.Writer, input string) {
			fmt.Fprintf(w, "\n🤖 Processing: %s\n", input)
		}),
		repl.WithRenderer(func(w io.Writer, provider string, reply string) {
			fmt.Fprintf(w, "\n✅ Result:\n%s\n%s\n", reply, strings.Repeat("-", 100))
		}),
		repl.WithTimeout(s.TurnTimeout),
	)
	return loop.Run(ctx)
}
