package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/huyly0909/chainchat/pkg/chain"
	"github.com/huyly0909/chainchat/pkg/engine"
	"github.com/huyly0909/chainchat/pkg/events"
)

// sseSink forwards chat events to an SSE response as they are published.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) PublishEvent(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

var _ events.EventSink = (*sseSink)(nil)

// handleChatStream streams the model's answer as server-sent events. Each
// event is a JSON chat event; the stream ends with a final or error event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, errMsg := parseChatRequest(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// A fresh engine per request so that only this client's sink sees the
	// stream.
	eng, err := s.engineFactory(*req.Model, req.SpecificModel, s.settings,
		engine.WithSink(&sseSink{w: w, flusher: flusher}))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ctx, cancel := context.WithTimeout(r.Context(), s.settings.TurnTimeout)
	defer cancel()

	log.Info().Str("model", *req.Model).Msg("processing streaming chat request")

	if _, err := chain.New(eng).Ask(ctx, req.Prompt); err != nil {
		// The engine already published an error event; log for the server side.
		log.Error().Err(err).Str("model", *req.Model).Msg("streaming chat failed")
	}
}
