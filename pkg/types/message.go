package types

// Role identifies a conversation participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason reports why generation halted.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
)

// Usage accounts for tokens consumed by a request.
type Usage struct {
	InputTokens              int64  `json:"input_tokens"`
	OutputTokens             int64  `json:"output_tokens"`
	CacheCreationInputTokens *int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int64 `json:"cache_read_input_tokens,omitempty"`
}

// TotalTokens is input plus output.
func (u Usage) TotalTokens() int64 { return u.InputTokens + u.OutputTokens }

// Message is a fully assembled service message. Immutable once built.
type Message struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Role         Role       `json:"role"`
	Content      Content    `json:"content"`
	Model        string     `json:"model"`
	StopReason   StopReason `json:"stop_reason,omitempty"`
	StopSequence string     `json:"stop_sequence,omitempty"`
	Usage        Usage      `json:"usage"`
}

// TextContent concatenates all text blocks in order.
func (m Message) TextContent() string {
	out := ""
	for _, block := range m.Content {
		if tb, ok := block.(TextBlock); ok {
			out += tb.Text
		}
	}
	return out
}

// FirstToolUse returns the first tool_use block, if any.
func (m Message) FirstToolUse() (ToolUseBlock, bool) {
	for _, block := range m.Content {
		if tu, ok := block.(ToolUseBlock); ok {
			return tu, true
		}
	}
	return ToolUseBlock{}, false
}

// MessageParam is a message as submitted in a request.
type MessageParam struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// UserMessage builds a single-text user message param.
func UserMessage(text string) MessageParam {
	return MessageParam{Role: RoleUser, Content: Text(text)}
}

// AssistantMessage builds a single-text assistant message param.
func AssistantMessage(text string) MessageParam {
	return MessageParam{Role: RoleAssistant, Content: Text(text)}
}
