package providers

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/providers/claude"
	"github.com/huyly0909/chainchat/pkg/providers/ollama"
	"github.com/huyly0909/chainchat/pkg/providers/openai"
	"github.com/huyly0909/chainchat/pkg/settings"
)

// Providers lists the provider names accepted by NewEngine, in display order.
func Providers() []string {
	return []string{settings.ProviderAuto, settings.ProviderGPT, settings.ProviderClaude}
}

// NewEngine builds an inference engine for the named provider. An empty model
// selects the provider's default. Credentials are validated up front so that
// misconfiguration surfaces before the first request.
func NewEngine(provider string, model string, s *settings.Settings, options ...engine.Option) (engine.Engine, error) {
	if err := s.ValidateProvider(provider); err != nil {
		return nil, err
	}
	if model == "" {
		model = s.DefaultModel(provider)
	}

	log.Debug().Str("provider", provider).Str("model", model).Msg("creating inference engine")

	switch provider {
	case settings.ProviderAuto:
		return ollama.NewEngine(ollama.Settings{
			BaseURL: s.Ollama.BaseURL,
			Model:   model,
		}, options...)

	case settings.ProviderGPT:
		return openai.NewEngine(openai.Settings{
			APIKey:  s.OpenAI.APIKey,
			BaseURL: s.OpenAI.BaseURL,
			Model:   model,
		}, nil, options...)

	case settings.ProviderClaude:
		return claude.NewEngine(claude.Settings{
			APIKey:  s.Claude.APIKey,
			BaseURL: s.Claude.BaseURL,
			Model:   model,
		}, nil, options...)

	default:
		return nil, errors.Wrapf(settings.ErrUnknownProvider, "%s", provider)
	}
}
