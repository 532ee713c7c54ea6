package agent

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cexll/claudesdk-go/pkg/mcp"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
)

// handleHook runs the registered callback for a CLI hook request. The CLI
// always receives a response: callback failure or timeout falls back to
// allow so the subprocess is never deadlocked.
func (s *Session) handleHook(raw json.RawMessage) {
	var fr hookRequestFrame
	if err := json.Unmarshal(raw, &fr); err != nil {
		s.cfg.Logger.Debug("agent: bad hook request", "error", err)
		return
	}

	var output json.RawMessage
	if handler, ok := s.cfg.Hooks[HookEvent(fr.HookEvent)]; ok {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HookTimeout)
		type hookOut struct {
			out json.RawMessage
			err error
		}
		done := make(chan hookOut, 1)
		go func() {
			out, err := handler(ctx, fr.Payload)
			done <- hookOut{out, err}
		}()
		select {
		case res := <-done:
			if res.err != nil {
				s.emit(Event{Kind: EventError, Text: sdkerr.Hook("%s: %v", fr.HookEvent, res.err).Error()})
			} else {
				output = res.out
			}
		case <-ctx.Done():
			s.emit(Event{Kind: EventError, Text: sdkerr.Hook("timeout").Error()})
		}
		cancel()
	}

	err := s.sendFrame(hookResponseFrame{
		Type:      kindHookResponse,
		RequestID: fr.RequestID,
		Decision:  "allow",
		Output:    output,
	})
	if err != nil {
		s.cfg.Logger.Debug("agent: hook response not delivered", "error", err)
	}
}

// handlePermission answers a CLI permission request via the registered
// handler. No handler means the configured permission mode governs on the
// CLI side, so the session allows.
func (s *Session) handlePermission(raw json.RawMessage) {
	var fr permissionRequestFrame
	if err := json.Unmarshal(raw, &fr); err != nil {
		s.cfg.Logger.Debug("agent: bad permission request", "error", err)
		return
	}

	decision := PermissionDecision{Allow: true}
	if s.cfg.Permissions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HookTimeout)
		d, err := s.cfg.Permissions(ctx, PermissionRequest{ToolName: fr.ToolName, Input: fr.Input})
		cancel()
		if err != nil {
			s.emit(Event{Kind: EventError, Text: sdkerr.Hook("permission %s: %v", fr.ToolName, err).Error()})
		} else {
			decision = d
		}
	}

	err := s.sendFrame(permissionResponseFrame{
		Type:          kindPermissionResponse,
		RequestID:     fr.RequestID,
		Allow:         decision.Allow,
		ModifiedInput: decision.ModifiedInput,
		Reason:        decision.Reason,
	})
	if err != nil {
		s.cfg.Logger.Debug("agent: permission response not delivered", "error", err)
	}
}

// handleToolCall dispatches a CLI tool invocation to the matching in-process
// MCP server and returns the serialized output, or a structured error, on
// the same request id.
func (s *Session) handleToolCall(raw json.RawMessage) {
	var fr mcpToolRequestFrame
	if err := json.Unmarshal(raw, &fr); err != nil {
		s.cfg.Logger.Debug("agent: bad tool request", "error", err)
		return
	}

	resp := mcpToolResponseFrame{Type: kindMcpToolResponse, RequestID: fr.RequestID}
	if server := s.findServer(fr.ServerName); server == nil {
		resp.Error = &mcpToolError{
			Type:    string(mcp.InvalidInput),
			Message: "unknown tool server " + fr.ServerName,
		}
	} else if out, err := server.ExecuteTool(context.Background(), fr.ToolName, fr.Input); err != nil {
		var te *mcp.ToolError
		if errors.As(err, &te) {
			resp.Error = &mcpToolError{Type: string(te.Kind), Message: te.Message}
		} else {
			resp.Error = &mcpToolError{Type: string(mcp.ExecutionFailed), Message: err.Error()}
		}
	} else {
		resp.Output = out
	}

	if err := s.sendFrame(resp); err != nil {
		s.cfg.Logger.Debug("agent: tool response not delivered", "error", err)
	}
}

func (s *Session) findServer(name string) *mcp.SdkMcpServer {
	for _, srv := range s.cfg.Servers {
		if srv.Name() == name {
			return srv
		}
	}
	return nil
}
