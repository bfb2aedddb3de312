package claude

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultAPIVersion = "2023-06-01"

// Client is a minimal Anthropic Messages API client.
type Client struct {
	httpClient *http.Client
	apiKey     string
	APIVersion string
	BaseURL    string
}

// NewClient initializes and returns a new API client.
func NewClient(apiKey string, baseURL string, apiVersion ...string) *Client {
	version := defaultAPIVersion
	if len(apiVersion) > 0 {
		version = apiVersion[0]
	}
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		BaseURL:    baseURL,
		APIVersion: version,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.APIVersion)
	req.Header.Set("Content-Type", "application/json")
}

// ErrorResponse represents the API's error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SendMessage sends a message request and returns the response.
func (c *Client) SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeErrorResponse(resp.StatusCode, respBody)
	}

	var messageResp MessageResponse
	if err := json.Unmarshal(respBody, &messageResp); err != nil {
		return nil, err
	}

	return &messageResp, nil
}

// StreamMessage sends a streaming message request and returns a channel of
// parsed server-sent events. The channel is closed when the stream ends or the
// context is cancelled.
func (c *Client) StreamMessage(ctx context.Context, req *MessageRequest) (<-chan StreamingEvent, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return nil, decodeErrorResponse(resp.StatusCode, respBody)
	}

	events := make(chan StreamingEvent)
	go streamEvents(ctx, resp, events)

	return events, nil
}

func decodeErrorResponse(statusCode int, body []byte) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error.Message == "" {
		return errors.Errorf("claude API returned status %d", statusCode)
	}
	return errors.New(errorResp.Error.Message)
}

func streamEvents(ctx context.Context, resp *http.Response, events chan StreamingEvent) {
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	defer close(events)

	reader := bufio.NewReader(resp.Body)
	var eventLines [][]byte

	emit := func() bool {
		if len(eventLines) == 0 {
			return true
		}
		var event StreamingEvent
		if parseErr := parseSSEEvent(eventLines, &event); parseErr != nil {
			log.Debug().Err(parseErr).Msg("failed to parse SSE event")
			eventLines = eventLines[:0]
			return true
		}
		eventLines = eventLines[:0]

		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) == 0 {
			// Empty line indicates the end of an event
			if !emit() {
				return
			}
		} else {
			eventLines = append(eventLines, line)
		}
		if err != nil {
			if err == io.EOF {
				// Flush an event whose terminating blank line never arrived.
				emit()
			} else if !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("unexpected error reading streaming response")
			}
			return
		}
	}
}

// parseSSEEvent parses an SSE event accumulated over multiple lines.
func parseSSEEvent(lines [][]byte, event *StreamingEvent) error {
	var eventData bytes.Buffer
	for _, line := range lines {
		line = bytes.TrimSuffix(line, []byte("\n"))

		parts := bytes.SplitN(line, []byte(": "), 2)
		if len(parts) != 2 {
			continue
		}

		field, value := parts[0], parts[1]
		if string(field) == "data" {
			eventData.Write(value)
		}
	}

	if eventData.Len() == 0 {
		return errors.New("no data field in SSE event")
	}

	return json.Unmarshal(eventData.Bytes(), event)
}
