// Package streaming parses text/event-stream responses into typed events and
// reconstructs complete messages from accumulated deltas.
package streaming

import (
	"encoding/json"

	"github.com/cexll/claudesdk-go/pkg/types"
)

// EventType enumerates the stream event variants.
type EventType string

const (
	MessageStart      EventType = "message_start"
	ContentBlockStart EventType = "content_block_start"
	ContentBlockDelta EventType = "content_block_delta"
	ContentBlockStop  EventType = "content_block_stop"
	MessageDelta      EventType = "message_delta"
	MessageStop       EventType = "message_stop"
	Ping              EventType = "ping"
	Unknown           EventType = "unknown"
)

// Delta carries a partial fragment for a content block or message.
type Delta struct {
	Type         string           `json:"type"`
	Text         string           `json:"text,omitempty"`
	PartialJSON  string           `json:"partial_json,omitempty"`
	Thinking     string           `json:"thinking,omitempty"`
	Signature    string           `json:"signature,omitempty"`
	StopReason   types.StopReason `json:"stop_reason,omitempty"`
	StopSequence string           `json:"stop_sequence,omitempty"`
}

// Event is one typed stream event. Unknown events keep the original name and
// raw payload so callers can inspect them without the stream failing.
type Event struct {
	Type         EventType
	Name         string
	Index        int
	Message      *types.Message
	ContentBlock types.ContentBlock
	Delta        *Delta
	Usage        *types.Usage
	Raw          json.RawMessage
}

type eventPayload struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	Message      *types.Message  `json:"message,omitempty"`
	ContentBlock json.RawMessage `json:"content_block,omitempty"`
	Delta        *Delta          `json:"delta,omitempty"`
	Usage        *types.Usage    `json:"usage,omitempty"`
}

// DecodeEvent parses a bare event payload whose name is carried in its
// "type" field, as delivered outside SSE framing (the agent protocol wraps
// events this way).
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Event{}, err
	}
	return decodeEvent(head.Type, data)
}

func decodeEvent(name string, data []byte) (Event, error) {
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, err
	}
	evt := Event{
		Index: payload.Index,
		Delta: payload.Delta,
		Usage: payload.Usage,
		Raw:   append(json.RawMessage(nil), data...),
		Name:  name,
	}
	switch name {
	case string(MessageStart):
		evt.Type = MessageStart
		evt.Message = payload.Message
	case string(ContentBlockStart):
		evt.Type = ContentBlockStart
		if len(payload.ContentBlock) > 0 {
			block, err := types.DecodeContentBlock(payload.ContentBlock)
			if err != nil {
				return Event{}, err
			}
			evt.ContentBlock = block
		}
	case string(ContentBlockDelta):
		evt.Type = ContentBlockDelta
	case string(ContentBlockStop):
		evt.Type = ContentBlockStop
	case string(MessageDelta):
		evt.Type = MessageDelta
	case string(MessageStop):
		evt.Type = MessageStop
	case string(Ping):
		evt.Type = Ping
	default:
		evt.Type = Unknown
	}
	return evt, nil
}
