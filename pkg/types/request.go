package types

import (
	"encoding/json"
	"fmt"
)

// SystemPrompt is either a plain string or an ordered sequence of annotated
// text blocks, each optionally carrying cache control.
type SystemPrompt struct {
	text   string
	blocks []TextBlock
}

// SystemText builds a plain-string system prompt.
func SystemText(text string) *SystemPrompt { return &SystemPrompt{text: text} }

// SystemBlocks builds a structured system prompt.
func SystemBlocks(blocks ...TextBlock) *SystemPrompt { return &SystemPrompt{blocks: blocks} }

// IsStructured reports whether the prompt uses annotated blocks.
func (s *SystemPrompt) IsStructured() bool { return s != nil && len(s.blocks) > 0 }

// Text returns the plain form, or the concatenated block texts.
func (s *SystemPrompt) Text() string {
	if s == nil {
		return ""
	}
	if !s.IsStructured() {
		return s.text
	}
	out := ""
	for _, b := range s.blocks {
		out += b.Text
	}
	return out
}

// Blocks returns the structured form, or nil for plain prompts.
func (s *SystemPrompt) Blocks() []TextBlock {
	if s == nil {
		return nil
	}
	return s.blocks
}

// MarshalJSON emits a bare string or an array of text blocks.
func (s *SystemPrompt) MarshalJSON() ([]byte, error) {
	if s.IsStructured() {
		tagged := make([]json.RawMessage, 0, len(s.blocks))
		for _, b := range s.blocks {
			raw, err := marshalBlock(b)
			if err != nil {
				return nil, err
			}
			tagged = append(tagged, raw)
		}
		return json.Marshal(tagged)
	}
	return json.Marshal(s.text)
}

// UnmarshalJSON accepts both forms.
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.text)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	s.blocks = s.blocks[:0]
	for _, raw := range raws {
		block, err := DecodeContentBlock(raw)
		if err != nil {
			return err
		}
		tb, ok := block.(TextBlock)
		if !ok {
			return fmt.Errorf("types: system prompt block must be text")
		}
		s.blocks = append(s.blocks, tb)
	}
	return nil
}

// ToolParam is anything that can appear in a request's tools list. Custom
// tools use ToolDefinition; built-in tools provide their own serialization.
type ToolParam interface {
	ToolName() string
}

// ToolDefinition declares a client-defined tool with a JSON schema.
type ToolDefinition struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"input_schema"`
	CacheControl *CacheControl  `json:"cache_control,omitempty"`
}

// ToolName implements ToolParam.
func (t ToolDefinition) ToolName() string { return t.Name }

// ThinkingConfig enables extended thinking with a token budget.
type ThinkingConfig struct {
	Type         string `json:"type"` // "enabled"
	BudgetTokens int64  `json:"budget_tokens"`
}

// EnabledThinking builds a thinking config with the given budget.
func EnabledThinking(budget int64) *ThinkingConfig {
	return &ThinkingConfig{Type: "enabled", BudgetTokens: budget}
}

// Metadata carries request attribution.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	Model         string          `json:"model"`
	Messages      []MessageParam  `json:"messages"`
	MaxTokens     int64           `json:"max_tokens"`
	System        *SystemPrompt   `json:"system,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopK          *int64          `json:"top_k,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	Tools         []ToolParam     `json:"tools,omitempty"`
	ToolChoice    map[string]any  `json:"tool_choice,omitempty"`
	Thinking      *ThinkingConfig `json:"thinking,omitempty"`
	Metadata      *Metadata       `json:"metadata,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
}

// CountTokensRequest is the body of POST /v1/messages/count_tokens.
type CountTokensRequest struct {
	Model    string         `json:"model"`
	Messages []MessageParam `json:"messages"`
	System   *SystemPrompt  `json:"system,omitempty"`
	Tools    []ToolParam    `json:"tools,omitempty"`
}

// CountTokensResponse reports the estimated input token count.
type CountTokensResponse struct {
	InputTokens int64 `json:"input_tokens"`
}
