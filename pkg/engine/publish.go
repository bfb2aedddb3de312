package engine

import (
	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/events"
)

// PublishEvent sends an event to all sinks in the configuration. Sink failures
// are logged and do not interrupt inference.
func (c *Config) PublishEvent(event events.Event) {
	for _, sink := range c.EventSinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Error().Err(err).Str("event_type", string(event.Type())).Msg("failed to publish event to sink")
		}
	}
}
