// Package tool defines the invocable tool contract shared by the SDK MCP
// server and the request builders, plus the built-in tool wrappers the
// service recognizes by type.
package tool

import (
	"context"
	"encoding/json"

	"github.com/cexll/claudesdk-go/pkg/types"
)

// Tool is a named capability the assistant can call.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, input json.RawMessage) (Result, error)
}

// Func adapts a handler function into a Tool.
type Func struct {
	ToolName        string
	ToolDescription string
	Schema          map[string]any
	Handler         func(ctx context.Context, input json.RawMessage) (Result, error)
}

func (f Func) Name() string               { return f.ToolName }
func (f Func) Description() string        { return f.ToolDescription }
func (f Func) InputSchema() map[string]any { return f.Schema }

func (f Func) Call(ctx context.Context, input json.RawMessage) (Result, error) {
	return f.Handler(ctx, input)
}

// Definition converts a Tool into the request-level declaration.
func Definition(t Tool) types.ToolDefinition {
	return types.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
	}
}
