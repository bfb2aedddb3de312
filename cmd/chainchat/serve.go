package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huyly0909/chainchat/pkg/chain"
	"github.com/huyly0909/chainchat/pkg/server"
	"github.com/huyly0909/chainchat/pkg/settings"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP chat backend with the embedded web UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	s, err := settings.Load()
	if err != nil {
		return err
	}

	srv := server.NewServer(s, chain.NewCache(s))

	fmt.Println("🚀 Starting AI Chat Backend...")
	fmt.Printf("🔗 Server: %s\n", srv.URL())
	fmt.Println("🤖 Supported models: Auto (Ollama), GPT (OpenAI), Claude (Anthropic)")
	fmt.Printf("🔑 OpenAI API: %s\n", availability(s.OpenAI.APIKey != ""))
	fmt.Printf("🔑 Anthropic API: %s\n", availability(s.Claude.APIKey != ""))
	fmt.Println("🦙 Ollama: Always available (local)")
	fmt.Println()
	fmt.Println("API Endpoints:")
	fmt.Println("- GET  /health - Health check")
	fmt.Println("- GET  /api/models - Available models")
	fmt.Println("- POST /api/chat - Chat with AI")
	fmt.Println("- POST /api/chat/stream - Chat with streaming response")
	fmt.Println()

	if s.Server.OpenBrowser {
		go server.OpenBrowser(srv.URL())
	}

	return srv.ListenAndServe(ctx)
}

func availability(available bool) string {
	if available {
		return "✅ Available"
	}
	return "❌ Not configured"
}
