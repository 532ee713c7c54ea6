package api

import (
	"encoding/json"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// ParsedResponse pairs a message with its structured output.
type ParsedResponse[T any] struct {
	Message *types.Message
	Output  T
}

// Parse locates the message's first text block, parses it as JSON, and
// deserializes it into T. Failures are ResponseValidation errors.
func Parse[T any](msg *types.Message) (*ParsedResponse[T], error) {
	var out T
	if msg == nil {
		return nil, sdkerr.ResponseValidation("no message to parse")
	}
	text, ok := firstText(msg)
	if !ok {
		return nil, sdkerr.ResponseValidation("message has no text block to parse")
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, sdkerr.ResponseValidation("parsing structured output: %v", err)
	}
	return &ParsedResponse[T]{Message: msg, Output: out}, nil
}

func firstText(msg *types.Message) (string, bool) {
	for _, block := range msg.Content {
		if tb, ok := block.(types.TextBlock); ok {
			return tb.Text, true
		}
	}
	return "", false
}
