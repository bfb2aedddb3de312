package claude

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/huyly0909/chainchat/pkg/events"
)

// ContentBlockMerger reassembles a full message response from a stream of
// server-sent events. Each Add call consumes one event and returns the chat
// events to publish for it.
//
// Text deltas accumulate into text blocks, input_json deltas into the tool
// call input. Completed blocks are appended to the response in stream order.
type ContentBlockMerger struct {
	metadata      events.EventMetadata
	response      *MessageResponse
	err           *ErrorDetail
	contentBlocks map[int]*ContentBlock
	inputJSON     map[int]*strings.Builder
}

func NewContentBlockMerger(metadata events.EventMetadata) *ContentBlockMerger {
	return &ContentBlockMerger{
		metadata:      metadata,
		contentBlocks: make(map[int]*ContentBlock),
		inputJSON:     make(map[int]*strings.Builder),
	}
}

// Text returns the response text accumulated so far, including any text block
// still in flight.
func (cbm *ContentBlockMerger) Text() string {
	sb := strings.Builder{}
	if cbm.response != nil {
		sb.WriteString(cbm.response.FullText())
	}
	for _, cb := range cbm.contentBlocks {
		if cb.Type == ContentTypeText {
			sb.WriteString(cb.Text)
		}
	}
	return sb.String()
}

func (cbm *ContentBlockMerger) Response() *MessageResponse {
	return cbm.response
}

func (cbm *ContentBlockMerger) Error() *ErrorDetail {
	return cbm.err
}

func (cbm *ContentBlockMerger) Add(event StreamingEvent) ([]events.Event, error) {
	switch event.Type {
	case PingType:
		return nil, nil

	case MessageStartType:
		if event.Message == nil {
			return nil, errors.New("message_start event must have a message")
		}
		cbm.response = event.Message
		cbm.response.Content = nil
		cbm.metadata.Model = event.Message.Model
		cbm.metadata.Usage = &events.Usage{
			InputTokens:  event.Message.Usage.InputTokens,
			OutputTokens: event.Message.Usage.OutputTokens,
		}
		return []events.Event{events.NewStartEvent(cbm.metadata)}, nil

	case ContentBlockStartType:
		if cbm.response == nil {
			return nil, errors.New("content_block_start event before message_start")
		}
		if event.ContentBlock == nil {
			return nil, errors.New("content_block_start event must have a content block")
		}
		if _, exists := cbm.contentBlocks[event.Index]; exists {
			return nil, errors.Errorf("content block with index %d already started", event.Index)
		}
		block := *event.ContentBlock
		cbm.contentBlocks[event.Index] = &block
		if block.Type == ContentTypeToolUse {
			cbm.inputJSON[event.Index] = &strings.Builder{}
		}
		return nil, nil

	case ContentBlockDeltaType:
		if cbm.response == nil {
			return nil, errors.New("content_block_delta event before message_start")
		}
		if event.Delta == nil {
			return nil, errors.New("content_block_delta event must have a delta")
		}
		cb, exists := cbm.contentBlocks[event.Index]
		if !exists {
			return nil, errors.Errorf("content block with index %d was never started", event.Index)
		}

		switch event.Delta.Type {
		case TextDeltaType:
			cb.Text += event.Delta.Text
			return []events.Event{
				events.NewPartialCompletionEvent(cbm.metadata, event.Delta.Text, cbm.Text()),
			}, nil
		case InputJSONDeltaType:
			sb, ok := cbm.inputJSON[event.Index]
			if !ok {
				return nil, errors.Errorf("input_json_delta for non-tool block %d", event.Index)
			}
			sb.WriteString(event.Delta.PartialJSON)
			return nil, nil
		default:
			return nil, errors.Errorf("unknown delta type: %s", event.Delta.Type)
		}

	case ContentBlockStopType:
		if cbm.response == nil {
			return nil, errors.New("content_block_stop event before message_start")
		}
		cb, exists := cbm.contentBlocks[event.Index]
		if !exists {
			return nil, errors.Errorf("content block with index %d was never started", event.Index)
		}
		delete(cbm.contentBlocks, event.Index)

		switch cb.Type {
		case ContentTypeText:
			cbm.response.Content = append(cbm.response.Content, NewTextContent(cb.Text))
			return nil, nil

		case ContentTypeToolUse:
			input := json.RawMessage(cb.Input)
			if sb, ok := cbm.inputJSON[event.Index]; ok && sb.Len() > 0 {
				input = json.RawMessage(sb.String())
			}
			delete(cbm.inputJSON, event.Index)
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			cbm.response.Content = append(cbm.response.Content, NewToolUseContent(cb.ID, cb.Name, input))
			return []events.Event{
				events.NewToolCallEvent(cbm.metadata, events.ToolCall{
					ID:    cb.ID,
					Name:  cb.Name,
					Input: string(input),
				}),
			}, nil

		default:
			return nil, errors.Errorf("unknown content block type: %s", cb.Type)
		}

	case MessageDeltaType:
		if event.Delta != nil && event.Delta.StopReason != "" {
			stopReason := event.Delta.StopReason
			cbm.metadata.StopReason = &stopReason
			if cbm.response != nil {
				cbm.response.StopReason = stopReason
			}
		}
		if event.Usage != nil {
			cbm.metadata.Usage = &events.Usage{
				InputTokens:  event.Usage.InputTokens,
				OutputTokens: event.Usage.OutputTokens,
			}
			if cbm.response != nil {
				cbm.response.Usage = *event.Usage
			}
		}
		return nil, nil

	case MessageStopType:
		if cbm.response == nil {
			return nil, errors.New("message_stop event before message_start")
		}
		return []events.Event{
			events.NewFinalEvent(cbm.metadata, cbm.response.FullText()),
		}, nil

	case ErrorType:
		if event.Error == nil {
			return nil, errors.New("error event must have an error")
		}
		cbm.err = event.Error
		return []events.Event{
			events.NewErrorEvent(cbm.metadata, errors.New(event.Error.Message)),
		}, nil

	default:
		return nil, errors.Errorf("unknown event type: %s", event.Type)
	}
}
