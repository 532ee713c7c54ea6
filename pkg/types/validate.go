package types

import (
	"encoding/base64"
	"regexp"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
)

const (
	// MaxTokensLimit is the service ceiling for max_tokens.
	MaxTokensLimit = 200000
	// ThinkingOverheadTokens is the headroom required above the thinking budget.
	ThinkingOverheadTokens = 256
	// MaxModelLength caps the model identifier length.
	MaxModelLength = 100
	// MaxTextChars caps the textual payload of a single block.
	MaxTextChars = 1_000_000
	// MaxMessages caps the number of messages per request.
	MaxMessages = 10_000
)

var modelPattern = regexp.MustCompile(`^[a-z0-9.\-@:]+$`)

// ValidateModelID checks a model identifier against the allowed character set.
func ValidateModelID(model string) error {
	if model == "" {
		return sdkerr.BadRequest("model: must not be empty")
	}
	if len(model) > MaxModelLength {
		return sdkerr.BadRequest("model: identifier exceeds %d characters", MaxModelLength)
	}
	if !modelPattern.MatchString(model) {
		return sdkerr.BadRequest("model: invalid characters in %q", model)
	}
	return nil
}

// Validate checks the request invariants once, pre-transport. It is pure:
// two calls on the same request produce the same result, and a failure names
// the offending field.
func (r *MessageRequest) Validate() error {
	if err := ValidateModelID(r.Model); err != nil {
		return err
	}
	if len(r.Messages) == 0 {
		return sdkerr.BadRequest("messages: must not be empty")
	}
	if len(r.Messages) > MaxMessages {
		return sdkerr.BadRequest("messages: more than %d messages", MaxMessages)
	}
	if r.MaxTokens <= 0 || r.MaxTokens > MaxTokensLimit {
		return sdkerr.BadRequest("max_tokens: must be in (0, %d], got %d", MaxTokensLimit, r.MaxTokens)
	}
	if r.Thinking != nil && r.MaxTokens < r.Thinking.BudgetTokens+ThinkingOverheadTokens {
		return sdkerr.BadRequest("max_tokens: must be at least thinking.budget_tokens + %d", ThinkingOverheadTokens)
	}
	for i, msg := range r.Messages {
		if err := validateContent(msg.Content, i); err != nil {
			return err
		}
	}
	if r.System != nil {
		if r.System.IsStructured() {
			for _, block := range r.System.Blocks() {
				if block.Text == "" {
					return sdkerr.BadRequest("system: block text must not be empty")
				}
			}
		} else if r.System.Text() == "" {
			return sdkerr.BadRequest("system: must not be empty")
		}
	}
	if r.Tools != nil {
		if len(r.Tools) == 0 {
			return sdkerr.BadRequest("tools: must not be empty when present")
		}
		for _, tool := range r.Tools {
			if tool == nil || tool.ToolName() == "" {
				return sdkerr.BadRequest("tools: tool name must not be empty")
			}
			if def, ok := tool.(ToolDefinition); ok && def.InputSchema == nil {
				return sdkerr.BadRequest("tools: input_schema for %q must be an object", def.Name)
			}
		}
	}
	return nil
}

func validateContent(content Content, msgIndex int) error {
	if len(content) == 0 {
		return sdkerr.BadRequest("messages[%d].content: must not be empty", msgIndex)
	}
	for _, block := range content {
		switch b := block.(type) {
		case TextBlock:
			if b.Text == "" {
				return sdkerr.BadRequest("messages[%d].content: text block must not be empty", msgIndex)
			}
			if len(b.Text) > MaxTextChars {
				return sdkerr.BadRequest("messages[%d].content: text block exceeds %d characters", msgIndex, MaxTextChars)
			}
		case ImageBlock:
			if err := validateImage(b, msgIndex); err != nil {
				return err
			}
		case ToolUseBlock:
			if b.Name == "" {
				return sdkerr.BadRequest("messages[%d].content: tool_use name must not be empty", msgIndex)
			}
		case ToolResultBlock:
			if b.ToolUseID == "" {
				return sdkerr.BadRequest("messages[%d].content: tool_result tool_use_id must not be empty", msgIndex)
			}
		case ThinkingBlock, DocumentBlock:
			// No pre-transport invariants beyond shape.
		default:
			return sdkerr.BadRequest("messages[%d].content: unknown block variant", msgIndex)
		}
	}
	return nil
}

func validateImage(b ImageBlock, msgIndex int) error {
	switch b.Source.Type {
	case "base64":
		if !SupportedMediaType(b.Source.MediaType) {
			return sdkerr.BadRequest("messages[%d].content: unsupported image media_type %q", msgIndex, b.Source.MediaType)
		}
		if _, err := base64.StdEncoding.DecodeString(b.Source.Data); err != nil {
			return sdkerr.BadRequest("messages[%d].content: image data is not valid base64", msgIndex)
		}
	case "url":
		if b.Source.URL == "" {
			return sdkerr.BadRequest("messages[%d].content: image url must not be empty", msgIndex)
		}
	default:
		return sdkerr.BadRequest("messages[%d].content: unknown image source type %q", msgIndex, b.Source.Type)
	}
	return nil
}
