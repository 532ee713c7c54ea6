package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cexll/claudesdk-go/pkg/types"
)

func TestBuiltinSerialization(t *testing.T) {
	raw, err := json.Marshal(MemoryTool())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	json.Unmarshal(raw, &fields)
	if fields["type"] != "memory_20250818" || fields["name"] != "memory" {
		t.Fatalf("builtin fields: %v", fields)
	}
	if _, ok := fields["input_schema"]; ok {
		t.Fatal("builtin must omit input_schema")
	}
	if _, ok := fields["cache_control"]; ok {
		t.Fatal("unset cache_control must be omitted")
	}
}

func TestBuiltinWithCacheControl(t *testing.T) {
	b := BashTool()
	b.CacheControl = types.NewCacheControl()
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"cache_control"`) {
		t.Fatalf("cache_control missing: %s", raw)
	}
}

func TestBuiltinIsToolParam(t *testing.T) {
	var _ types.ToolParam = MemoryTool()
}

func TestResultEncoding(t *testing.T) {
	raw, err := Encode(Text("done"))
	if err != nil {
		t.Fatalf("encode text: %v", err)
	}
	if string(raw) != `{"text":"done","type":"text"}` {
		t.Fatalf("text result: %s", raw)
	}

	jr, err := JSON(map[string]int{"n": 4})
	if err != nil {
		t.Fatalf("json result: %v", err)
	}
	raw, err = Encode(jr)
	if err != nil {
		t.Fatalf("encode json: %v", err)
	}
	if !strings.Contains(string(raw), `"type":"json"`) || !strings.Contains(string(raw), `{"n":4}`) {
		t.Fatalf("json result: %s", raw)
	}

	br, err := Blocks(types.TextBlock{Text: "hi"})
	if err != nil {
		t.Fatalf("blocks result: %v", err)
	}
	raw, err = Encode(br)
	if err != nil {
		t.Fatalf("encode blocks: %v", err)
	}
	if !strings.Contains(string(raw), `"type":"content_blocks"`) {
		t.Fatalf("blocks result: %s", raw)
	}
}

func TestBlocksRejectsDisallowedKinds(t *testing.T) {
	_, err := Blocks(types.ToolUseBlock{ID: "x", Name: "y"})
	if err == nil {
		t.Fatal("tool_use block accepted in result")
	}
}

type mapMemory struct {
	files map[string]string
}

func (m *mapMemory) View(_ context.Context, path string) (string, error) {
	return m.files[path], nil
}
func (m *mapMemory) Create(_ context.Context, path, content string) (string, error) {
	m.files[path] = content
	return "created " + path, nil
}
func (m *mapMemory) StrReplace(_ context.Context, path, oldStr, newStr string) (string, error) {
	m.files[path] = strings.Replace(m.files[path], oldStr, newStr, 1)
	return "replaced", nil
}
func (m *mapMemory) Insert(_ context.Context, path string, line int, content string) (string, error) {
	return "inserted", nil
}
func (m *mapMemory) Delete(_ context.Context, path string) (string, error) {
	delete(m.files, path)
	return "deleted " + path, nil
}
func (m *mapMemory) Rename(_ context.Context, oldPath, newPath string) (string, error) {
	m.files[newPath] = m.files[oldPath]
	delete(m.files, oldPath)
	return "renamed", nil
}

func TestDispatchMemory(t *testing.T) {
	mem := &mapMemory{files: map[string]string{}}

	res, err := DispatchMemory(context.Background(), mem, json.RawMessage(`{"command":"create","path":"/notes.md","file_text":"hello"}`))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.(TextResult).Text != "created /notes.md" {
		t.Fatalf("create result: %+v", res)
	}

	res, err = DispatchMemory(context.Background(), mem, json.RawMessage(`{"command":"view","path":"/notes.md"}`))
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if res.(TextResult).Text != "hello" {
		t.Fatalf("view result: %+v", res)
	}

	if _, err := DispatchMemory(context.Background(), mem, json.RawMessage(`{"command":"zap"}`)); err == nil {
		t.Fatal("unknown command accepted")
	}
}

func TestFuncTool(t *testing.T) {
	f := Func{
		ToolName:        "adder",
		ToolDescription: "adds two numbers",
		Schema:          map[string]any{"type": "object"},
		Handler: func(_ context.Context, input json.RawMessage) (Result, error) {
			var in struct{ A, B int }
			json.Unmarshal(input, &in)
			return JSON(map[string]int{"sum": in.A + in.B})
		},
	}
	def := Definition(f)
	if def.Name != "adder" || def.InputSchema == nil {
		t.Fatalf("definition: %+v", def)
	}
	res, err := f.Call(context.Background(), json.RawMessage(`{"A":2,"B":3}`))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	raw, _ := Encode(res)
	if !strings.Contains(string(raw), `"sum":5`) {
		t.Fatalf("result: %s", raw)
	}
}
