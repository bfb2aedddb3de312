package engine

import (
	"github.com/huyly0909/chainchat/pkg/events"
)

// Config holds shared engine configuration.
type Config struct {
	// EventSinks receive streaming events during inference
	EventSinks []events.EventSink
}

type Option func(*Config) error

// WithSink adds an event sink to the engine configuration.
func WithSink(sink events.EventSink) Option {
	return func(config *Config) error {
		config.EventSinks = append(config.EventSinks, sink)
		return nil
	}
}

// NewConfig creates an engine configuration from the given options.
func NewConfig(options ...Option) (*Config, error) {
	config := &Config{
		EventSinks: []events.EventSink{},
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}
