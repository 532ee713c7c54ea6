package agent

import (
	"encoding/json"

	"github.com/cexll/claudesdk-go/pkg/mcp"
	"github.com/cexll/claudesdk-go/pkg/types"
	"github.com/google/uuid"
)

// Message kinds on the subprocess protocol. Frames carrying a request_id are
// correlated to a waiting caller; the rest are broadcast to receive streams.
const (
	kindReady              = "ready"
	kindQuery              = "query"
	kindAssistantMessage   = "assistant_message"
	kindUserMessage        = "user_message"
	kindSystemMessage      = "system_message"
	kindStreamEvent        = "stream_event"
	kindResult             = "result"
	kindHookRequest        = "hook_request"
	kindHookResponse       = "hook_response"
	kindPermissionRequest  = "permission_request"
	kindPermissionResponse = "permission_response"
	kindMcpToolRequest     = "mcp_tool_request"
	kindMcpToolResponse    = "mcp_tool_response"
	kindControl            = "control"
	kindError              = "error"
)

// Control subtypes.
const (
	controlSetModel          = "set_model"
	controlSetPermissionMode = "set_permission_mode"
	controlInterrupt         = "interrupt"
	controlShutdown          = "shutdown"
	controlRegisterTools     = "register_tools"
)

type frameHeader struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Subtype   string `json:"subtype,omitempty"`
}

func newRequestID() string { return uuid.NewString() }

// ChatMessage is one history entry. The id is session-local and anchors
// pruning decisions.
type ChatMessage struct {
	ID      string        `json:"id"`
	Role    types.Role    `json:"role"`
	Content types.Content `json:"content"`
}

type queryFrame struct {
	Type            string        `json:"type"`
	RequestID       string        `json:"request_id"`
	Prompt          string        `json:"prompt"`
	SystemPrompt    string        `json:"system_prompt,omitempty"`
	History         []ChatMessage `json:"history,omitempty"`
	PartialMessages bool          `json:"include_partial_messages,omitempty"`
}

type controlFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Subtype   string `json:"subtype"`

	Model          string         `json:"model,omitempty"`
	PermissionMode PermissionMode `json:"permission_mode,omitempty"`
	Servers        []serverAd     `json:"servers,omitempty"`
}

type serverAd struct {
	Name  string               `json:"name"`
	Tools []mcp.ToolDescriptor `json:"tools"`
}

type resultFrame struct {
	RequestID  string        `json:"request_id"`
	Message    types.Message `json:"message"`
	IsComplete bool          `json:"is_complete"`
}

type messageFrame struct {
	Message types.Message `json:"message"`
}

type streamEventFrame struct {
	Event json.RawMessage `json:"event"`
}

type errorFrame struct {
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message"`
}

type hookRequestFrame struct {
	RequestID string          `json:"request_id"`
	HookEvent string          `json:"hook_event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type hookResponseFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Decision  string          `json:"decision"`
	Output    json.RawMessage `json:"output,omitempty"`
}

type permissionRequestFrame struct {
	RequestID string          `json:"request_id"`
	ToolName  string          `json:"tool_name"`
	Input     json.RawMessage `json:"input,omitempty"`
}

type permissionResponseFrame struct {
	Type          string          `json:"type"`
	RequestID     string          `json:"request_id"`
	Allow         bool            `json:"allow"`
	ModifiedInput json.RawMessage `json:"modified_input,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

type mcpToolRequestFrame struct {
	RequestID  string          `json:"request_id"`
	ServerName string          `json:"server_name"`
	ToolName   string          `json:"tool_name"`
	Input      json.RawMessage `json:"input,omitempty"`
}

type mcpToolError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type mcpToolResponseFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     *mcpToolError   `json:"error,omitempty"`
}

func encodeFrame(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
