package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huyly0909/chainchat/pkg/chain"
	"github.com/huyly0909/chainchat/pkg/conversation"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/events"
	"github.com/huyly0909/chainchat/pkg/settings"
)

type mockChatService struct {
	answer       string
	err          error
	lastProvider string
	lastModel    string
	lastPrompt   string
}

func (m *mockChatService) Ask(ctx context.Context, provider string, model string, prompt string) (string, error) {
	m.lastProvider = provider
	m.lastModel = model
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func newTestServer(t *testing.T, chat ChatService, options ...Option) *httptest.Server {
	t.Helper()
	s, err := settings.Load()
	require.NoError(t, err)
	s.OpenAI.APIKey = "sk-test"
	s.Claude.APIKey = ""

	srv := NewServer(s, chat, options...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &mockChatService{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "AI Chat Backend", body["service"])
}

func TestModels(t *testing.T) {
	ts := newTestServer(t, &mockChatService{})

	resp, err := http.Get(ts.URL + "/api/models")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Models []map[string]interface{} `json:"models"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Models, 3)

	assert.Equal(t, "auto", body.Models[0]["id"])
	assert.Equal(t, false, body.Models[0]["requires_api_key"])

	assert.Equal(t, "gpt", body.Models[1]["id"])
	assert.Equal(t, true, body.Models[1]["available"])

	assert.Equal(t, "claude", body.Models[2]["id"])
	assert.Equal(t, false, body.Models[2]["available"])
}

func TestChatSuccess(t *testing.T) {
	chatService := &mockChatService{answer: "Hello there!"}
	ts := newTestServer(t, chatService)

	resp, body := postJSON(t, ts.URL+"/api/chat", `{"prompt":"Hi","model":"AUTO"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello there!", body["response"])
	assert.Equal(t, "auto", body["model_used"])
	assert.Equal(t, "success", body["status"])

	assert.Equal(t, "auto", chatService.lastProvider)
	assert.Equal(t, "Hi", chatService.lastPrompt)
}

func TestChatValidation(t *testing.T) {
	ts := newTestServer(t, &mockChatService{answer: "unused"})

	testCases := []struct {
		name        string
		contentType string
		body        string
		wantError   string
	}{
		{"not json", "text/plain", "hello", "Request must be JSON"},
		{"malformed json", "application/json", "{", "Request must be JSON"},
		{"empty prompt", "application/json", `{"prompt":"   ","model":"auto"}`, "Prompt is required and cannot be empty"},
		{"missing model", "application/json", `{"prompt":"hi"}`, "Model is required"},
		{"invalid provider", "application/json", `{"prompt":"hi","model":"mistral"}`, "Invalid model provider"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/chat", tc.contentType, strings.NewReader(tc.body))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Contains(t, body["error"], tc.wantError)
			assert.Equal(t, "error", body["status"])
		})
	}
}

func TestChatSetupErrorIs400(t *testing.T) {
	chatService := &mockChatService{err: errors.Wrap(chain.ErrChainSetup, "OPENAI_API_KEY is not set")}
	ts := newTestServer(t, chatService)

	resp, body := postJSON(t, ts.URL+"/api/chat", `{"prompt":"hi","model":"gpt"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "OPENAI_API_KEY")
}

func TestChatEngineErrorIs500(t *testing.T) {
	chatService := &mockChatService{err: errors.New("connection refused")}
	ts := newTestServer(t, chatService)

	resp, body := postJSON(t, ts.URL+"/api/chat", `{"prompt":"hi","model":"auto"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "Failed to process chat request")
	assert.Contains(t, body["error"], "connection refused")
}

func TestChatMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &mockChatService{})

	resp, err := http.Get(ts.URL + "/api/chat")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t, &mockChatService{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "Multi-Model AI Chat")
}

type fakeStreamEngine struct {
	config *engine.Config
}

func (e *fakeStreamEngine) RunInference(ctx context.Context, messages conversation.Conversation) (conversation.Conversation, error) {
	metadata := events.EventMetadata{}
	e.config.PublishEvent(events.NewStartEvent(metadata))
	e.config.PublishEvent(events.NewPartialCompletionEvent(metadata, "Hel", "Hel"))
	e.config.PublishEvent(events.NewPartialCompletionEvent(metadata, "lo", "Hello"))
	e.config.PublishEvent(events.NewFinalEvent(metadata, "Hello"))

	result := append(conversation.Conversation{}, messages...)
	result = append(result, conversation.NewChatMessage(conversation.RoleAssistant, "Hello"))
	return result, nil
}

func TestChatStream(t *testing.T) {
	factory := func(provider string, model string, s *settings.Settings, options ...engine.Option) (engine.Engine, error) {
		config, err := engine.NewConfig(options...)
		if err != nil {
			return nil, err
		}
		return &fakeStreamEngine{config: config}, nil
	}
	ts := newTestServer(t, &mockChatService{}, WithEngineFactory(factory))

	resp, err := http.Post(ts.URL+"/api/chat/stream", "application/json", strings.NewReader(`{"prompt":"hi","model":"auto"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, `"type":"start"`)
	assert.Contains(t, body, `"delta":"Hel"`)
	assert.Contains(t, body, `"type":"final"`)
	assert.Contains(t, body, `"text":"Hello"`)
}

func TestChatStreamValidation(t *testing.T) {
	ts := newTestServer(t, &mockChatService{})

	resp, body := postJSON(t, ts.URL+"/api/chat/stream", `{"prompt":"","model":"auto"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
}
