package agent

import (
	"context"
	"encoding/json"
)

// HookEvent names a point in the agent's turn where the CLI consults the
// client.
type HookEvent string

const (
	HookPreToolUse       HookEvent = "pre_tool_use"
	HookPostToolUse      HookEvent = "post_tool_use"
	HookUserPromptSubmit HookEvent = "user_prompt_submit"
	HookStop             HookEvent = "stop"
	HookSubagentStop     HookEvent = "subagent_stop"
	HookPreCompact       HookEvent = "pre_compact"
)

// HookHandler processes one hook invocation. The returned payload is sent
// back to the CLI verbatim.
type HookHandler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// PermissionMode controls when the CLI must ask before acting.
type PermissionMode string

const (
	PermissionDefault     PermissionMode = "default"
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	PermissionBypass      PermissionMode = "bypassPermissions"
)

// PermissionRequest is the CLI asking whether a tool may run.
type PermissionRequest struct {
	ToolName string
	Input    json.RawMessage
}

// PermissionDecision answers a PermissionRequest. ModifiedInput, when set,
// replaces the tool input the CLI will use.
type PermissionDecision struct {
	Allow         bool
	ModifiedInput json.RawMessage
	Reason        string
}

// PermissionHandler decides permission requests. It may suspend; the session
// holds no locks while it runs.
type PermissionHandler func(ctx context.Context, req PermissionRequest) (PermissionDecision, error)
