package bedrock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/streaming"
	"github.com/cexll/claudesdk-go/pkg/types"
)

func TestNormalizeModelID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"anthropic.claude-3-5-sonnet-20241022-v2:0", "anthropic.claude-3-5-sonnet-20241022-v2:0"},
		{"claude-3-opus-20240229-v1:0", "anthropic.claude-3-opus-20240229-v1:0"},
		{"claude-3-5-sonnet-20241022", "anthropic.claude-3-5-sonnet-20241022-v2:0"},
		{"claude-3-haiku-20240307", "anthropic.claude-3-haiku-20240307-v1:0"},
	}
	for _, tc := range cases {
		if got := NormalizeModelID(tc.in); got != tc.want {
			t.Fatalf("normalize %q: got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestRewriteBody(t *testing.T) {
	req := &types.MessageRequest{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 100,
		Messages:  []types.MessageParam{types.UserMessage("hi")},
		Stream:    true,
	}
	body, err := rewriteBody(req)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["model"]; ok {
		t.Fatal("model must move out of the body")
	}
	if _, ok := fields["stream"]; ok {
		t.Fatal("stream flag must not survive the rewrite")
	}
	if fields["anthropic_version"] != APIVersion {
		t.Fatalf("anthropic_version: %v", fields["anthropic_version"])
	}
	if fields["max_tokens"] != float64(100) {
		t.Fatalf("max_tokens lost: %v", fields["max_tokens"])
	}
}

type mockRuntime struct {
	lastInvoke *bedrockruntime.InvokeModelInput
	output     []byte
	err        error
}

func (m *mockRuntime) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	m.lastInvoke = params
	if m.err != nil {
		return nil, m.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: m.output}, nil
}

func (m *mockRuntime) InvokeModelWithResponseStream(_ context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error) {
	return nil, m.err
}

func TestCreateMessageInvokesNormalizedModel(t *testing.T) {
	runtime := &mockRuntime{output: []byte(`{
		"id": "msg_br", "type": "message", "role": "assistant",
		"content": [{"type": "text", "text": "4"}],
		"model": "", "stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 1}
	}`)}
	p, err := New(runtime)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	msg, err := p.CreateMessage(context.Background(), &types.MessageRequest{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 100,
		Messages:  []types.MessageParam{types.UserMessage("2+2?")},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := aws.ToString(runtime.lastInvoke.ModelId); got != "anthropic.claude-3-5-sonnet-20241022-v2:0" {
		t.Fatalf("model id: %q", got)
	}
	var fields map[string]any
	json.Unmarshal(runtime.lastInvoke.Body, &fields)
	if _, ok := fields["model"]; ok {
		t.Fatal("body still carries model")
	}
	if msg.TextContent() != "4" {
		t.Fatalf("text: %q", msg.TextContent())
	}
	// Bedrock echoes no model id; the requested one is restored.
	if msg.Model != "claude-3-5-sonnet-20241022" {
		t.Fatalf("model backfill: %q", msg.Model)
	}
}

type fakeEventStream struct {
	chunks [][]byte
	err    error
}

func (f *fakeEventStream) Events() <-chan brtypes.ResponseStream {
	ch := make(chan brtypes.ResponseStream, len(f.chunks))
	for _, c := range f.chunks {
		ch <- &brtypes.ResponseStreamMemberChunk{Value: brtypes.PayloadPart{Bytes: c}}
	}
	close(ch)
	return ch
}

func (f *fakeEventStream) Close() error { return nil }
func (f *fakeEventStream) Err() error   { return f.err }

func TestEventStreamReframedAsSSE(t *testing.T) {
	events := &fakeEventStream{chunks: [][]byte{
		[]byte(`{"type":"message_start","message":{"id":"msg_br","type":"message","role":"assistant","content":[],"model":"m","usage":{"input_tokens":1,"output_tokens":0}}}`),
		[]byte(`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		[]byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hey"}}`),
		[]byte(`{"type":"content_block_stop","index":0}`),
		[]byte(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`),
		[]byte(`{"type":"message_stop"}`),
	}}
	stream := streaming.New(sseFromEventStream(events))
	msg, err := stream.GetFinalMessage()
	if err != nil {
		t.Fatalf("final: %v", err)
	}
	if msg.TextContent() != "hey" || msg.StopReason != types.StopEndTurn {
		t.Fatalf("message: %+v", msg)
	}
}

func TestSupportsModel(t *testing.T) {
	p := &Provider{}
	for _, m := range []string{"anthropic.claude-3-opus-20240229-v1:0", "claude-3-haiku-20240307"} {
		if !p.SupportsModel(m) {
			t.Fatalf("model rejected: %q", m)
		}
	}
	if p.SupportsModel("gemini-pro") {
		t.Fatal("foreign model accepted")
	}
}

func TestClassifyThrottling(t *testing.T) {
	runtime := &mockRuntime{err: &smithy.GenericAPIError{
		Code:    "ThrottlingException",
		Message: "Rate exceeded",
		Fault:   smithy.FaultClient,
	}}
	p, _ := New(runtime)
	_, err := p.CreateMessage(context.Background(), &types.MessageRequest{
		Model:     "claude-3-5-sonnet-20241022",
		MaxTokens: 10,
		Messages:  []types.MessageParam{types.UserMessage("hi")},
	})
	sdkErr, ok := sdkerr.As(err)
	if !ok || sdkErr.Kind != sdkerr.KindRateLimit {
		t.Fatalf("expected rate limit, got %v", err)
	}
}
