// Package mcp implements the in-process SDK tool server: tools defined by
// the caller, advertised to the CLI at session start, and dispatched over
// the session control channel without any subprocess.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cexll/claudesdk-go/pkg/telemetry"
	"github.com/cexll/claudesdk-go/pkg/tool"
)

// Handler executes one tool invocation.
type Handler func(ctx context.Context, input json.RawMessage) (tool.Result, error)

// SdkTool is one tool owned by an SdkMcpServer.
type SdkTool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler

	compiled *jsonschema.Schema
}

// ToolDescriptor is the advertisement sent to the CLI for one tool.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// SdkMcpServer holds a named tool map. Clones share the map, so stateful
// tools observe shared state across clones.
type SdkMcpServer struct {
	name  string
	tools map[string]*SdkTool
}

// Builder assembles a server fluently.
type Builder struct {
	name  string
	tools []*SdkTool
	errs  []error
}

// New starts a server builder.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Tool registers a tool. Schema problems surface at Build.
func (b *Builder) Tool(name, description string, schema map[string]any, handler Handler) *Builder {
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("mcp: tool name is empty"))
		return b
	}
	if handler == nil {
		b.errs = append(b.errs, fmt.Errorf("mcp: tool %q has no handler", name))
		return b
	}
	b.tools = append(b.tools, &SdkTool{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Handler:     handler,
	})
	return b
}

// Build compiles tool schemas and returns the server.
func (b *Builder) Build() (*SdkMcpServer, error) {
	if b.name == "" {
		return nil, fmt.Errorf("mcp: server name is empty")
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	server := &SdkMcpServer{name: b.name, tools: make(map[string]*SdkTool, len(b.tools))}
	for _, t := range b.tools {
		if _, dup := server.tools[t.Name]; dup {
			return nil, fmt.Errorf("mcp: duplicate tool %q on server %q", t.Name, b.name)
		}
		if t.InputSchema != nil {
			compiled, err := compileSchema(t.Name, t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("mcp: tool %q schema: %w", t.Name, err)
			}
			t.compiled = compiled
		}
		server.tools[t.Name] = t
	}
	return server, nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	// Round-trip through JSON so the compiler sees canonical value types.
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytesReader(raw))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("inline://%s.json", name)
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// Name returns the server identifier used in control-channel routing.
func (s *SdkMcpServer) Name() string { return s.name }

// Tools lists descriptors in no particular order.
func (s *SdkMcpServer) Tools() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

// Contains reports whether the server owns a tool.
func (s *SdkMcpServer) Contains(name string) bool {
	_, ok := s.tools[name]
	return ok
}

// Clone returns a server sharing the same tool map.
func (s *SdkMcpServer) Clone() *SdkMcpServer {
	return &SdkMcpServer{name: s.name, tools: s.tools}
}

// ExecuteTool validates input against the tool's schema and dispatches to
// its handler, returning the serialized result.
func (s *SdkMcpServer) ExecuteTool(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, "mcp.execute_tool")
	out, err := s.executeTool(ctx, name, input)
	telemetry.EndSpan(span, err)
	return out, err
}

func (s *SdkMcpServer) executeTool(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, &ToolError{Kind: InvalidInput, Tool: name, Message: fmt.Sprintf("tool %q not found on server %q", name, s.name)}
	}
	if t.compiled != nil {
		var value any
		if len(input) > 0 {
			if err := json.Unmarshal(input, &value); err != nil {
				return nil, &ToolError{Kind: InvalidInput, Tool: name, Message: fmt.Sprintf("input is not valid JSON: %v", err)}
			}
		} else {
			value = map[string]any{}
		}
		if err := t.compiled.Validate(value); err != nil {
			return nil, &ToolError{Kind: InvalidInput, Tool: name, Message: err.Error()}
		}
	}
	result, err := t.Handler(ctx, input)
	if err != nil {
		var toolErr *ToolError
		if asToolError(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{Kind: ExecutionFailed, Tool: name, Message: err.Error()}
	}
	out, err := tool.Encode(result)
	if err != nil {
		return nil, &ToolError{Kind: ExecutionFailed, Tool: name, Message: err.Error()}
	}
	return out, nil
}
