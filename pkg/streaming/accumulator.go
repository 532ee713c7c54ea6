package streaming

import (
	"encoding/json"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// Accumulator folds stream events into a complete message.
type Accumulator struct {
	message *types.Message
	partial map[int]*partialBlock
	order   []int
	stopped bool
}

type partialBlock struct {
	kind      string
	text      string
	inputJSON string
	thinking  string
	signature string
	toolID    string
	toolName  string
	image     *types.ImageBlock
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{partial: map[int]*partialBlock{}}
}

// Add folds one event. Ping and Unknown events are no-ops.
func (a *Accumulator) Add(evt Event) error {
	switch evt.Type {
	case MessageStart:
		if evt.Message == nil {
			return sdkerr.Protocol("message_start without message")
		}
		clone := *evt.Message
		clone.Content = nil
		a.message = &clone
	case ContentBlockStart:
		pb := &partialBlock{}
		switch block := evt.ContentBlock.(type) {
		case types.TextBlock:
			pb.kind = "text"
			pb.text = block.Text
		case types.ToolUseBlock:
			pb.kind = "tool_use"
			pb.toolID = block.ID
			pb.toolName = block.Name
			if len(block.Input) > 0 && string(block.Input) != "{}" {
				pb.inputJSON = string(block.Input)
			}
		case types.ThinkingBlock:
			pb.kind = "thinking"
			pb.thinking = block.Thinking
			pb.signature = block.Signature
		case types.ImageBlock:
			pb.kind = "image"
			img := block
			pb.image = &img
		default:
			pb.kind = "text"
		}
		a.partial[evt.Index] = pb
		a.order = append(a.order, evt.Index)
	case ContentBlockDelta:
		if evt.Delta == nil {
			return nil
		}
		pb, ok := a.partial[evt.Index]
		if !ok {
			return sdkerr.Protocol("delta for unknown content block index %d", evt.Index)
		}
		switch evt.Delta.Type {
		case "text_delta":
			pb.text += evt.Delta.Text
		case "input_json_delta":
			pb.inputJSON += evt.Delta.PartialJSON
		case "thinking_delta":
			pb.thinking += evt.Delta.Thinking
		case "signature_delta":
			pb.signature += evt.Delta.Signature
		}
	case MessageDelta:
		if a.message == nil {
			return sdkerr.Protocol("message_delta before message_start")
		}
		if evt.Delta != nil {
			if evt.Delta.StopReason != "" {
				a.message.StopReason = evt.Delta.StopReason
			}
			if evt.Delta.StopSequence != "" {
				a.message.StopSequence = evt.Delta.StopSequence
			}
		}
		if evt.Usage != nil {
			if evt.Usage.OutputTokens > 0 {
				a.message.Usage.OutputTokens = evt.Usage.OutputTokens
			}
			if evt.Usage.InputTokens > 0 {
				a.message.Usage.InputTokens = evt.Usage.InputTokens
			}
		}
	case MessageStop:
		a.stopped = true
	case ContentBlockStop, Ping, Unknown:
		// Nothing to fold.
	}
	return nil
}

// Message assembles the accumulated result.
func (a *Accumulator) Message() (*types.Message, error) {
	if a.message == nil {
		return nil, sdkerr.Protocol("stream ended before message_start")
	}
	content := make(types.Content, 0, len(a.order))
	for _, idx := range a.order {
		pb := a.partial[idx]
		switch pb.kind {
		case "text":
			content = append(content, types.TextBlock{Text: pb.text})
		case "tool_use":
			input := pb.inputJSON
			if input == "" {
				input = "{}"
			}
			if !json.Valid([]byte(input)) {
				return nil, sdkerr.Protocol("tool_use input for block %d is not valid JSON", idx)
			}
			content = append(content, types.ToolUseBlock{ID: pb.toolID, Name: pb.toolName, Input: json.RawMessage(input)})
		case "thinking":
			content = append(content, types.ThinkingBlock{Signature: pb.signature, Thinking: pb.thinking})
		case "image":
			content = append(content, *pb.image)
		}
	}
	msg := *a.message
	msg.Content = content
	return &msg, nil
}

// Stopped reports whether message_stop was observed.
func (a *Accumulator) Stopped() bool { return a.stopped }
