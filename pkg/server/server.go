package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/chain"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/providers"
	"github.com/huyly0909/chainchat/pkg/settings"
)

//go:embed web
var webFS embed.FS

// ChatService answers a single prompt with the given provider and model.
// *chain.Cache is the production implementation.
type ChatService interface {
	Ask(ctx context.Context, provider string, model string, prompt string) (string, error)
}

// EngineFactory builds a fresh engine for a streaming request.
type EngineFactory func(provider string, model string, s *settings.Settings, options ...engine.Option) (engine.Engine, error)

// Server exposes the chat backend over HTTP, together with the embedded web
// UI.
type Server struct {
	settings      *settings.Settings
	chat          ChatService
	engineFactory EngineFactory
	mux           *http.ServeMux
}

type Option func(*Server)

// WithEngineFactory overrides how streaming engines are built.
func WithEngineFactory(f EngineFactory) Option {
	return func(s *Server) {
		s.engineFactory = f
	}
}

func NewServer(s *settings.Settings, chat ChatService, options ...Option) *Server {
	ret := &Server{
		settings:      s,
		chat:          chat,
		engineFactory: providers.NewEngine,
		mux:           http.NewServeMux(),
	}
	for _, option := range options {
		option(ret)
	}

	webRoot, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}

	ret.mux.HandleFunc("/health", ret.handleHealth)
	ret.mux.HandleFunc("/api/models", ret.handleModels)
	ret.mux.HandleFunc("/api/chat", ret.handleChat)
	ret.mux.HandleFunc("/api/chat/stream", ret.handleChatStream)
	ret.mux.Handle("/", http.FileServer(http.FS(webRoot)))

	return ret
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the HTTP server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.settings.Server.Host, s.settings.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("starting chat server")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// URL returns the address the server is reachable at.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s:%d", s.settings.Server.Host, s.settings.Server.Port)
}

type chatRequest struct {
	Prompt        string  `json:"prompt"`
	Model         *string `json:"model"`
	SpecificModel string  `json:"specific_model,omitempty"`
}

type chatResponse struct {
	Response      string `json:"response"`
	ModelUsed     string `json:"model_used"`
	SpecificModel string `json:"specific_model,omitempty"`
	Status        string `json:"status"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, Status: "error"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "AI Chat Backend",
		"version": "1.0.0",
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": []map[string]interface{}{
			{
				"id":               settings.ProviderAuto,
				"name":             "Auto (Ollama)",
				"provider":         "ollama",
				"description":      fmt.Sprintf("Local Ollama models (%s)", s.settings.Ollama.Model),
				"requires_api_key": false,
			},
			{
				"id":               settings.ProviderGPT,
				"name":             "GPT (OpenAI)",
				"provider":         "openai",
				"description":      "OpenAI GPT models",
				"requires_api_key": true,
				"available":        s.settings.OpenAI.APIKey != "",
			},
			{
				"id":               settings.ProviderClaude,
				"name":             "Claude (Anthropic)",
				"provider":         "anthropic",
				"description":      "Anthropic Claude models",
				"requires_api_key": true,
				"available":        s.settings.Claude.APIKey != "",
			},
		},
	})
}

// parseChatRequest validates the request payload. It returns a user-facing
// error message for invalid requests.
func parseChatRequest(r *http.Request) (*chatRequest, string) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return nil, "Request must be JSON"
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "Request must be JSON"
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, "Prompt is required and cannot be empty"
	}
	if req.Model == nil {
		return nil, "Model is required"
	}
	*req.Model = strings.ToLower(*req.Model)

	valid := false
	for _, provider := range providers.Providers() {
		if *req.Model == provider {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Sprintf("Invalid model provider. Must be one of: %v", providers.Providers())
	}

	return &req, ""
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, errMsg := parseChatRequest(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	log.Info().Str("model", *req.Model).Int("prompt_length", len(req.Prompt)).Msg("processing chat request")

	ctx, cancel := context.WithTimeout(r.Context(), s.settings.TurnTimeout)
	defer cancel()

	answer, err := s.chat.Ask(ctx, *req.Model, req.SpecificModel, req.Prompt)
	if err != nil {
		if errors.Is(err, chain.ErrChainSetup) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("model", *req.Model).Msg("chat processing error")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process chat request: %s", err))
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:      answer,
		ModelUsed:     *req.Model,
		SpecificModel: req.SpecificModel,
		Status:        "success",
	})
}
