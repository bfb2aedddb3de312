package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", s.Ollama.BaseURL)
	assert.Equal(t, DefaultOllamaModel, s.Ollama.Model)
	assert.Equal(t, "https://api.openai.com/v1", s.OpenAI.BaseURL)
	assert.Equal(t, DefaultOpenAIModel, s.OpenAI.Model)
	assert.Equal(t, DefaultClaudeModel, s.Claude.Model)
	assert.Equal(t, DefaultAgentModel, s.Taiga.Model)
	assert.Equal(t, "http://localhost:9000", s.Taiga.URL)
	assert.Equal(t, "admin", s.Taiga.Username)
	assert.Equal(t, "admin", s.Taiga.Password)
	assert.Equal(t, "http://localhost:8000/sse", s.Taiga.MCPServerURL)
	assert.Equal(t, 7860, s.Server.Port)
	assert.Equal(t, 180*time.Second, s.TurnTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://ollama.internal:11434")
	t.Setenv("OLLAMA_DEFAULT_MODEL", "llama3:70b")
	t.Setenv("ANTHROPIC_MODEL", "claude-opus-4-20250514")
	t.Setenv("SERVER_PORT", "8080")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://ollama.internal:11434", s.Ollama.BaseURL)
	assert.Equal(t, "llama3:70b", s.Ollama.Model)
	assert.Equal(t, "claude-opus-4-20250514", s.Taiga.Model)
	assert.Equal(t, 8080, s.Server.Port)
}

func TestValidateProvider(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)
	s.OpenAI.APIKey = ""
	s.Claude.APIKey = ""

	assert.NoError(t, s.ValidateProvider(ProviderAuto))
	assert.Error(t, s.ValidateProvider(ProviderGPT))
	assert.Error(t, s.ValidateProvider(ProviderClaude))
	assert.ErrorIs(t, s.ValidateProvider("mistral"), ErrUnknownProvider)

	s.OpenAI.APIKey = "sk-test"
	assert.NoError(t, s.ValidateProvider(ProviderGPT))
	s.Claude.APIKey = "sk-ant-test"
	assert.NoError(t, s.ValidateProvider(ProviderClaude))
}

func TestDefaultModel(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultOllamaModel, s.DefaultModel(ProviderAuto))
	assert.Equal(t, DefaultOpenAIModel, s.DefaultModel(ProviderGPT))
	assert.Equal(t, DefaultClaudeModel, s.DefaultModel(ProviderClaude))
}
