package settings

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Provider names accepted by the chat chain factory.
const (
	ProviderAuto   = "auto"
	ProviderGPT    = "gpt"
	ProviderClaude = "claude"
)

// Default models per provider.
const (
	DefaultOllamaModel = "qwen3:8b"
	DefaultOpenAIModel = "gpt-3.5-turbo"
	DefaultClaudeModel = "claude-3-haiku-20240307"
	DefaultAgentModel  = "claude-sonnet-4-20250514"
)

var ErrUnknownProvider = errors.New("unknown provider")

// OllamaSettings configures the local Ollama provider.
type OllamaSettings struct {
	BaseURL string `mapstructure:"ollama_base_url"`
	Model   string `mapstructure:"ollama_default_model"`
}

// OpenAISettings configures the OpenAI provider.
type OpenAISettings struct {
	APIKey  string `mapstructure:"openai_api_key"`
	BaseURL string `mapstructure:"openai_base_url"`
	Model   string `mapstructure:"openai_model"`
}

// ClaudeSettings configures the Anthropic provider.
type ClaudeSettings struct {
	APIKey  string `mapstructure:"anthropic_api_key"`
	BaseURL string `mapstructure:"anthropic_base_url"`
	Model   string `mapstructure:"anthropic_chat_model"`
}

// TaigaSettings configures the Taiga project-management agent.
type TaigaSettings struct {
	URL      string `mapstructure:"taiga_url"`
	Username string `mapstructure:"taiga_username"`
	Password string `mapstructure:"taiga_password"`
	// Model used for agent turns, overridable through ANTHROPIC_MODEL
	Model        string `mapstructure:"anthropic_model"`
	MCPServerURL string `mapstructure:"mcp_server_url"`
}

// ServerSettings configures the HTTP chat backend.
type ServerSettings struct {
	Host        string `mapstructure:"server_host"`
	Port        int    `mapstructure:"server_port"`
	OpenBrowser bool   `mapstructure:"open_browser"`
}

// Settings aggregates all runtime configuration, sourced from the environment.
type Settings struct {
	Ollama OllamaSettings `mapstructure:",squash"`
	OpenAI OpenAISettings `mapstructure:",squash"`
	Claude ClaudeSettings `mapstructure:",squash"`
	Taiga  TaigaSettings  `mapstructure:",squash"`
	Server ServerSettings `mapstructure:",squash"`

	// TurnTimeout bounds a single inference round trip.
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
}

// Load reads settings from the environment, applying defaults for everything
// that is not set.
func Load() (*Settings, error) {
	v := viper.New()

	v.SetDefault("ollama_base_url", "http://localhost:11434")
	v.SetDefault("ollama_default_model", DefaultOllamaModel)
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("openai_model", DefaultOpenAIModel)
	v.SetDefault("anthropic_base_url", "https://api.anthropic.com")
	v.SetDefault("anthropic_chat_model", DefaultClaudeModel)
	v.SetDefault("anthropic_model", DefaultAgentModel)
	v.SetDefault("taiga_url", "http://localhost:9000")
	v.SetDefault("taiga_username", "admin")
	v.SetDefault("taiga_password", "admin")
	v.SetDefault("mcp_server_url", "http://localhost:8000/sse")
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_port", 7860)
	v.SetDefault("open_browser", true)
	v.SetDefault("turn_timeout", 180*time.Second)

	// Optional config file next to the binary or in the user config dir;
	// environment variables take precedence.
	v.SetConfigName("chainchat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "chainchat"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "could not read config file")
		}
	}

	v.AutomaticEnv()
	for _, key := range []string{
		"ollama_base_url", "ollama_default_model",
		"openai_api_key", "openai_base_url", "openai_model",
		"anthropic_api_key", "anthropic_base_url", "anthropic_chat_model", "anthropic_model",
		"taiga_url", "taiga_username", "taiga_password", "mcp_server_url",
		"server_host", "server_port", "open_browser", "turn_timeout",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(err, "could not bind env var %s", key)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal settings")
	}

	return settings, nil
}

// ValidateProvider checks that the named provider is known and that its
// credentials are present.
func (s *Settings) ValidateProvider(provider string) error {
	switch provider {
	case ProviderAuto:
		return nil
	case ProviderGPT:
		if s.OpenAI.APIKey == "" {
			return errors.New("OPENAI_API_KEY is not set")
		}
		return nil
	case ProviderClaude:
		if s.Claude.APIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is not set")
		}
		return nil
	default:
		return errors.Wrapf(ErrUnknownProvider, "%s", provider)
	}
}

// DefaultModel returns the model used for a provider when no specific model is
// requested.
func (s *Settings) DefaultModel(provider string) string {
	switch provider {
	case ProviderGPT:
		return s.OpenAI.Model
	case ProviderClaude:
		return s.Claude.Model
	default:
		return s.Ollama.Model
	}
}
