package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cexll/claudesdk-go/pkg/types"
)

// Builtin declares a service-recognized tool. Built-in tools carry a
// versioned type identifier instead of an input schema; the service supplies
// the schema and behavior.
type Builtin struct {
	// Type is the identifier the service recognizes, e.g. "memory_20250818".
	Type         string
	Name         string
	CacheControl *types.CacheControl
}

// ToolName implements types.ToolParam.
func (b Builtin) ToolName() string { return b.Name }

// MarshalJSON emits {type, name, cache_control?} with no input_schema.
func (b Builtin) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type": b.Type,
		"name": b.Name,
	}
	if b.CacheControl != nil {
		out["cache_control"] = b.CacheControl
	}
	return json.Marshal(out)
}

// MemoryTool declares the service memory tool.
func MemoryTool() Builtin { return Builtin{Type: "memory_20250818", Name: "memory"} }

// BashTool declares the service bash tool.
func BashTool() Builtin { return Builtin{Type: "bash_20250124", Name: "bash"} }

// TextEditorTool declares the service text editor tool.
func TextEditorTool() Builtin { return Builtin{Type: "text_editor_20250124", Name: "str_replace_editor"} }

// Memory is a caller-supplied backend for the memory tool. The service sends
// commands; the backend owns storage.
type Memory interface {
	View(ctx context.Context, path string) (string, error)
	Create(ctx context.Context, path, content string) (string, error)
	StrReplace(ctx context.Context, path, oldStr, newStr string) (string, error)
	Insert(ctx context.Context, path string, line int, content string) (string, error)
	Delete(ctx context.Context, path string) (string, error)
	Rename(ctx context.Context, oldPath, newPath string) (string, error)
}

type memoryCommand struct {
	Command string `json:"command"`
	Path    string `json:"path"`
	Content string `json:"insert_text"`
	File    string `json:"file_text"`
	OldStr  string `json:"old_str"`
	NewStr  string `json:"new_str"`
	Line    int    `json:"insert_line"`
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

// DispatchMemory routes a memory tool invocation to the backend.
func DispatchMemory(ctx context.Context, m Memory, input json.RawMessage) (Result, error) {
	var cmd memoryCommand
	if err := json.Unmarshal(input, &cmd); err != nil {
		return nil, fmt.Errorf("tool: decoding memory command: %w", err)
	}
	var out string
	var err error
	switch cmd.Command {
	case "view":
		out, err = m.View(ctx, cmd.Path)
	case "create":
		out, err = m.Create(ctx, cmd.Path, cmd.File)
	case "str_replace":
		out, err = m.StrReplace(ctx, cmd.Path, cmd.OldStr, cmd.NewStr)
	case "insert":
		out, err = m.Insert(ctx, cmd.Path, cmd.Line, cmd.Content)
	case "delete":
		out, err = m.Delete(ctx, cmd.Path)
	case "rename":
		out, err = m.Rename(ctx, cmd.OldPath, cmd.NewPath)
	default:
		return nil, fmt.Errorf("tool: unknown memory command %q", cmd.Command)
	}
	if err != nil {
		return nil, err
	}
	return Text(out), nil
}
