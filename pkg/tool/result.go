package tool

import (
	"encoding/json"
	"fmt"

	"github.com/cexll/claudesdk-go/pkg/types"
)

// Result is the outcome of a tool call: plain text, a JSON value, or a list
// of content blocks.
type Result interface {
	resultKind() string
}

// TextResult carries plain text output.
type TextResult struct {
	Text string
}

func (TextResult) resultKind() string { return "text" }

// JSONResult carries a structured JSON value.
type JSONResult struct {
	Value json.RawMessage
}

func (JSONResult) resultKind() string { return "json" }

// BlocksResult carries content blocks; only text and image blocks are
// permitted.
type BlocksResult struct {
	Blocks []types.ContentBlock
}

func (BlocksResult) resultKind() string { return "content_blocks" }

// Text builds a TextResult.
func Text(text string) Result { return TextResult{Text: text} }

// JSON builds a JSONResult from any serializable value.
func JSON(v any) (Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("tool: encoding result: %w", err)
	}
	return JSONResult{Value: raw}, nil
}

// Blocks builds a BlocksResult, rejecting block kinds the service does not
// accept in tool output.
func Blocks(blocks ...types.ContentBlock) (Result, error) {
	for _, b := range blocks {
		switch b.(type) {
		case types.TextBlock, types.ImageBlock:
		default:
			return nil, fmt.Errorf("tool: result blocks must be text or image, got %T", b)
		}
	}
	return BlocksResult{Blocks: blocks}, nil
}

// Encode serializes a result for the wire.
func Encode(r Result) (json.RawMessage, error) {
	switch v := r.(type) {
	case TextResult:
		return json.Marshal(map[string]any{"type": "text", "text": v.Text})
	case JSONResult:
		return json.Marshal(map[string]any{"type": "json", "value": v.Value})
	case BlocksResult:
		content := types.Content(v.Blocks)
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("tool: encoding result blocks: %w", err)
		}
		return json.Marshal(map[string]any{"type": "content_blocks", "blocks": json.RawMessage(raw)})
	default:
		return nil, fmt.Errorf("tool: unknown result kind %T", r)
	}
}
