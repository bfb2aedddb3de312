package claude

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectStreamingEvents(t *testing.T, body string) []StreamingEvent {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-key", srv.URL)
	ch, err := client.StreamMessage(context.Background(), &MessageRequest{
		Model:     "claude-3-haiku-20240307",
		MaxTokens: 16,
		Messages:  []Message{{Role: "user", Content: []ContentBlock{NewTextContent("hi")}}},
	})
	require.NoError(t, err)

	var received []StreamingEvent
	for event := range ch {
		received = append(received, event)
	}
	return received
}

func TestStreamMessageParsesEvents(t *testing.T) {
	received := collectStreamingEvents(t,
		"event: message_start\ndata: {\"type\":\"message_start\"}\n\n"+
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")

	require.Len(t, received, 2)
	assert.Equal(t, MessageStartType, received[0].Type)
	assert.Equal(t, MessageStopType, received[1].Type)
}

func TestStreamMessageFlushesEventAtEOF(t *testing.T) {
	// The last event ends at EOF without its terminating blank line.
	received := collectStreamingEvents(t,
		"event: message_start\ndata: {\"type\":\"message_start\"}\n\n"+
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n")

	require.Len(t, received, 2)
	assert.Equal(t, MessageStopType, received[1].Type)
}

func TestStreamMessageMultiLineData(t *testing.T) {
	received := collectStreamingEvents(t,
		"event: message_stop\ndata: {\"type\":\ndata: \"message_stop\"}\n\n")

	require.Len(t, received, 1)
	assert.Equal(t, MessageStopType, received[0].Type)
}

func TestStreamMessageErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient("bad-key", srv.URL)
	_, err := client.StreamMessage(context.Background(), &MessageRequest{
		Model:     "claude-3-haiku-20240307",
		MaxTokens: 16,
		Messages:  []Message{{Role: "user", Content: []ContentBlock{NewTextContent("hi")}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid x-api-key")
}
