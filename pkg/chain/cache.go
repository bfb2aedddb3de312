package chain

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/providers"
	"github.com/huyly0909/chainchat/pkg/settings"
)

type cacheKey struct {
	provider string
	model    string
}

// Cache builds chains on demand and reuses them per provider and model pair,
// so repeated requests do not reconstruct engines and HTTP clients.
type Cache struct {
	mu       sync.Mutex
	chains   map[cacheKey]*Chain
	settings *settings.Settings
	options  []engine.Option
}

func NewCache(s *settings.Settings, options ...engine.Option) *Cache {
	return &Cache{
		chains:   make(map[cacheKey]*Chain),
		settings: s,
		options:  options,
	}
}

// Get returns the cached chain for the provider and model, creating it on
// first use. An empty model selects the provider's default.
func (c *Cache) Get(provider string, model string) (*Chain, error) {
	if model == "" {
		model = c.settings.DefaultModel(provider)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{provider: provider, model: model}
	if chain, ok := c.chains[key]; ok {
		return chain, nil
	}

	eng, err := providers.NewEngine(provider, model, c.settings, c.options...)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("provider", provider).Str("model", model).Msg("caching new chain")
	chain := New(eng)
	c.chains[key] = chain
	return chain, nil
}

// ErrChainSetup marks configuration errors (unknown provider, missing
// credentials) as opposed to inference failures.
var ErrChainSetup = errors.New("chain setup failed")

// Ask answers a question with the chain for the provider and model. Setup
// errors are wrapped in ErrChainSetup.
func (c *Cache) Ask(ctx context.Context, provider string, model string, prompt string) (string, error) {
	chain, err := c.Get(provider, model)
	if err != nil {
		return "", errors.Wrapf(ErrChainSetup, "%s", err)
	}
	return chain.Ask(ctx, prompt)
}

// Len reports the number of cached chains.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chains)
}
