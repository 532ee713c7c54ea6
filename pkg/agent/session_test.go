package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cexll/claudesdk-go/pkg/mcp"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/tool"
	"github.com/cexll/claudesdk-go/pkg/types"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) sink(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func resultJSON(requestID, text string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"type":"result","request_id":%q,"is_complete":true,"message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022","content":[{"type":"text","text":%q}],"usage":{"input_tokens":3,"output_tokens":5}}}`,
		requestID, text))
}

// scriptedResponder answers queries with a fixed text and acks control
// requests.
func scriptedResponder(text string) func(json.RawMessage) []json.RawMessage {
	return func(sent json.RawMessage) []json.RawMessage {
		var head frameHeader
		if json.Unmarshal(sent, &head) != nil {
			return nil
		}
		switch head.Type {
		case kindQuery:
			return []json.RawMessage{resultJSON(head.RequestID, text)}
		case kindControl:
			if head.RequestID != "" {
				return []json.RawMessage{json.RawMessage(
					fmt.Sprintf(`{"type":"control_response","request_id":%q}`, head.RequestID))}
			}
		}
		return nil
	}
}

func newMockFactory(respond func(json.RawMessage) []json.RawMessage) (func() (Transport, error), func() []*MockCliTransport) {
	var mu sync.Mutex
	var spawned []*MockCliTransport
	spawn := func() (Transport, error) {
		m := NewMockCliTransport()
		m.Respond = respond
		m.Queue(json.RawMessage(`{"type":"ready"}`))
		mu.Lock()
		spawned = append(spawned, m)
		mu.Unlock()
		return m, nil
	}
	list := func() []*MockCliTransport {
		mu.Lock()
		defer mu.Unlock()
		return append([]*MockCliTransport(nil), spawned...)
	}
	return spawn, list
}

func testSessionConfig(spawn func() (Transport, error)) SessionConfig {
	return SessionConfig{
		Spawn:            spawn,
		Model:            "claude-3-5-sonnet-20241022",
		SpawnTimeout:     2 * time.Second,
		ShutdownTimeout:  50 * time.Millisecond,
		HookTimeout:      100 * time.Millisecond,
		MaxReconnects:    1,
		ReconnectBackoff: sdkerr.Linear(time.Millisecond),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sentFrameWith(m *MockCliTransport, substr string) bool {
	for _, frame := range m.Sent() {
		if strings.Contains(string(frame), substr) {
			return true
		}
	}
	return false
}

func TestQueryRoundTrip(t *testing.T) {
	spawn, _ := newMockFactory(scriptedResponder("4"))
	s, err := NewSession(testSessionConfig(spawn))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	resp, err := s.Query(context.Background(), "What is 2+2?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := resp.Message.TextContent(); got != "4" {
		t.Fatalf("text = %q", got)
	}
	if !resp.IsComplete {
		t.Fatal("result not complete")
	}
	if h := s.History(); len(h) != 2 || h[0].Role != types.RoleUser || h[1].Role != types.RoleAssistant {
		t.Fatalf("history: %+v", h)
	}
	if st := s.State(); st != StateReady {
		t.Fatalf("state after query = %v", st)
	}
}

func TestQueryCarriesPartialMessagesFlag(t *testing.T) {
	spawn, mocks := newMockFactory(scriptedResponder("ok"))
	cfg := testSessionConfig(spawn)
	cfg.IncludePartialMessages = true
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	if _, err := s.Query(context.Background(), "stream this"); err != nil {
		t.Fatalf("query: %v", err)
	}
	if !sentFrameWith(mocks()[0], `"include_partial_messages":true`) {
		t.Fatal("query frame missing partial messages flag")
	}
}

func TestSetModelUpdatesOnAck(t *testing.T) {
	spawn, _ := newMockFactory(scriptedResponder(""))
	s, err := NewSession(testSessionConfig(spawn))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	if err := s.SetModel(context.Background(), "claude-3-opus-20240229"); err != nil {
		t.Fatalf("set model: %v", err)
	}
	if got := s.Model(); got != "claude-3-opus-20240229" {
		t.Fatalf("model = %q", got)
	}
	if err := s.SetPermissionMode(context.Background(), PermissionAcceptEdits); err != nil {
		t.Fatalf("set permission mode: %v", err)
	}
	if got := s.PermissionMode(); got != PermissionAcceptEdits {
		t.Fatalf("mode = %q", got)
	}
}

func TestControlErrorLeavesStateUntouched(t *testing.T) {
	respond := func(sent json.RawMessage) []json.RawMessage {
		var head frameHeader
		if json.Unmarshal(sent, &head) != nil || head.RequestID == "" {
			return nil
		}
		return []json.RawMessage{json.RawMessage(
			fmt.Sprintf(`{"type":"error","request_id":%q,"message":"unknown model"}`, head.RequestID))}
	}
	spawn, _ := newMockFactory(respond)
	s, err := NewSession(testSessionConfig(spawn))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	err = s.SetModel(context.Background(), "bogus")
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Fatalf("error = %v", err)
	}
	if got := s.Model(); got != "claude-3-5-sonnet-20241022" {
		t.Fatalf("model changed to %q", got)
	}
}

func TestHookTimeoutDefaultsToAllow(t *testing.T) {
	events := &eventLog{}
	spawn, mocks := newMockFactory(nil)
	cfg := testSessionConfig(spawn)
	cfg.HookTimeout = 30 * time.Millisecond
	cfg.Events = events.sink
	cfg.Hooks = map[HookEvent]HookHandler{
		HookPreToolUse: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	cli := mocks()[0]
	cli.Queue(json.RawMessage(`{"type":"hook_request","request_id":"hk_1","hook_event":"pre_tool_use"}`))

	waitFor(t, "hook response", func() bool { return sentFrameWith(cli, `"hook_response"`) })
	if !sentFrameWith(cli, `"decision":"allow"`) {
		t.Fatalf("hook response not allow: %v", cli.Sent())
	}
	if events.count(EventError) != 1 {
		t.Fatalf("expected one error event, got %d", events.count(EventError))
	}
}

func TestHookOutputForwarded(t *testing.T) {
	spawn, mocks := newMockFactory(nil)
	cfg := testSessionConfig(spawn)
	cfg.Hooks = map[HookEvent]HookHandler{
		HookUserPromptSubmit: func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"augmented":true}`), nil
		},
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	cli := mocks()[0]
	cli.Queue(json.RawMessage(`{"type":"hook_request","request_id":"hk_2","hook_event":"user_prompt_submit","payload":{}}`))
	waitFor(t, "hook output", func() bool { return sentFrameWith(cli, `"augmented":true`) })
}

func TestPermissionHandlerDecides(t *testing.T) {
	spawn, mocks := newMockFactory(nil)
	cfg := testSessionConfig(spawn)
	cfg.Permissions = func(ctx context.Context, req PermissionRequest) (PermissionDecision, error) {
		return PermissionDecision{Allow: false, Reason: "blocked by policy"}, nil
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	cli := mocks()[0]
	cli.Queue(json.RawMessage(`{"type":"permission_request","request_id":"pm_1","tool_name":"bash"}`))
	waitFor(t, "permission response", func() bool { return sentFrameWith(cli, `"blocked by policy"`) })
	if !sentFrameWith(cli, `"allow":false`) {
		t.Fatalf("expected deny: %v", cli.Sent())
	}
}

func calculatorServer(t *testing.T) *mcp.SdkMcpServer {
	t.Helper()
	server, err := mcp.New("calc").Tool("add", "adds numbers", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []any{"a", "b"},
	}, func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
		var in struct{ A, B float64 }
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, err
		}
		return tool.Text(fmt.Sprintf("%g", in.A+in.B)), nil
	}).Build()
	if err != nil {
		t.Fatalf("build server: %v", err)
	}
	return server
}

func TestToolAdvertisementAndDispatch(t *testing.T) {
	spawn, mocks := newMockFactory(nil)
	cfg := testSessionConfig(spawn)
	cfg.Servers = []*mcp.SdkMcpServer{calculatorServer(t)}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	cli := mocks()[0]
	if !sentFrameWith(cli, `"register_tools"`) || !sentFrameWith(cli, `"calc"`) {
		t.Fatalf("tools not advertised: %v", cli.Sent())
	}

	cli.Queue(json.RawMessage(`{"type":"mcp_tool_request","request_id":"tc_1","server_name":"calc","tool_name":"add","input":{"a":40,"b":2}}`))
	waitFor(t, "tool response", func() bool { return sentFrameWith(cli, `"tc_1"`) && sentFrameWith(cli, "42") })

	cli.Queue(json.RawMessage(`{"type":"mcp_tool_request","request_id":"tc_2","server_name":"compass","tool_name":"add","input":{}}`))
	waitFor(t, "unknown server error", func() bool { return sentFrameWith(cli, `"invalid_input"`) })
}

func TestForkIndependence(t *testing.T) {
	events := &eventLog{}
	spawn, mocks := newMockFactory(scriptedResponder("parent answer"))
	cfg := testSessionConfig(spawn)
	cfg.Events = events.sink
	parent, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer parent.Close()

	if _, err := parent.Query(context.Background(), "seed"); err != nil {
		t.Fatalf("seed query: %v", err)
	}
	child, err := parent.Fork(context.Background())
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	defer child.Close()
	if len(mocks()) != 2 {
		t.Fatalf("fork did not spawn a new subprocess: %d transports", len(mocks()))
	}
	if got := child.History(); len(got) != 2 {
		t.Fatalf("child history not snapshotted: %d", len(got))
	}

	// Mutate the parent after the fork.
	if err := parent.SetModel(context.Background(), "claude-3-opus-20240229"); err != nil {
		t.Fatalf("set model: %v", err)
	}
	if _, err := parent.Query(context.Background(), "another"); err != nil {
		t.Fatalf("parent query: %v", err)
	}

	if got := child.Model(); got != "claude-3-5-sonnet-20241022" {
		t.Fatalf("child model followed parent: %q", got)
	}
	if got := child.History(); len(got) != 2 {
		t.Fatalf("child history followed parent: %d", len(got))
	}
	if events.count(EventForked) != 1 {
		t.Fatal("forked event missing")
	}
}

func TestCloseIdempotentAndConcurrent(t *testing.T) {
	spawn, mocks := newMockFactory(nil)
	s, err := NewSession(testSessionConfig(spawn))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
		}()
	}
	wg.Wait()

	if st := s.State(); st != StateClosed {
		t.Fatalf("state = %v", st)
	}
	if kills := mocks()[0].KillCount(); kills != 1 {
		t.Fatalf("subprocess killed %d times", kills)
	}
	// Repeat close stays cheap and succeeds.
	if err := s.Close(); err != nil {
		t.Fatalf("third close: %v", err)
	}
}

func TestQueryAfterCloseFails(t *testing.T) {
	spawn, _ := newMockFactory(nil)
	s, err := NewSession(testSessionConfig(spawn))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.Close()

	_, err = s.Query(context.Background(), "late")
	var sdkErr *sdkerr.Error
	if !errors.As(err, &sdkErr) || sdkErr.Kind != sdkerr.KindTransport {
		t.Fatalf("error = %v", err)
	}
}

func TestReceiveStreamsFilterByKind(t *testing.T) {
	spawn, mocks := newMockFactory(nil)
	s, err := NewSession(testSessionConfig(spawn))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	assistant := s.ReceiveAssistantMessages()
	defer assistant.Close()
	eventsStream := s.ReceiveStreamEvents()
	defer eventsStream.Close()

	cli := mocks()[0]
	cli.Queue(json.RawMessage(`{"type":"system_message","message":{"id":"sys"}}`))
	cli.Queue(json.RawMessage(`{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}}`))
	cli.Queue(json.RawMessage(`{"type":"assistant_message","message":{"id":"msg_a","type":"message","role":"assistant","model":"m","content":[{"type":"text","text":"hi"}],"usage":{"input_tokens":1,"output_tokens":1}}}`))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := assistant.Next(ctx)
	if err != nil {
		t.Fatalf("assistant next: %v", err)
	}
	if msg.ID != "msg_a" || msg.TextContent() != "hi" {
		t.Fatalf("assistant message: %+v", msg)
	}

	evt, err := eventsStream.Next(ctx)
	if err != nil {
		t.Fatalf("event next: %v", err)
	}
	if evt.Delta == nil || evt.Delta.Text != "Hel" {
		t.Fatalf("stream event: %+v", evt)
	}
}

func TestReconnectRestoresRuntimeState(t *testing.T) {
	events := &eventLog{}
	spawn, mocks := newMockFactory(scriptedResponder(""))
	cfg := testSessionConfig(spawn)
	cfg.MaxReconnects = 2
	cfg.Events = events.sink
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	if err := s.SetPermissionMode(context.Background(), PermissionBypass); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	// Simulate the subprocess dying.
	mocks()[0].CloseStream()

	waitFor(t, "reconnect", func() bool { return len(mocks()) == 2 })
	replacement := mocks()[1]
	waitFor(t, "state restore", func() bool {
		return sentFrameWith(replacement, `"set_model"`) && sentFrameWith(replacement, `"bypassPermissions"`)
	})
	waitFor(t, "reconnected event", func() bool { return events.count(EventReconnected) == 1 })
	if events.count(EventReconnecting) == 0 {
		t.Fatal("reconnecting event missing")
	}

	// The session keeps working on the new transport.
	if _, err := s.Query(context.Background(), "still alive?"); err != nil {
		t.Fatalf("query after reconnect: %v", err)
	}
}

func TestReconnectGiveUpFailsPending(t *testing.T) {
	var spawns int
	var firstMock *MockCliTransport
	spawn := func() (Transport, error) {
		spawns++
		if spawns > 1 {
			return nil, errors.New("spawn refused")
		}
		firstMock = NewMockCliTransport()
		firstMock.Queue(json.RawMessage(`{"type":"ready"}`))
		return firstMock, nil
	}
	cfg := testSessionConfig(spawn)
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	queryErr := make(chan error, 1)
	go func() {
		_, err := s.Query(context.Background(), "never answered")
		queryErr <- err
	}()
	waitFor(t, "query sent", func() bool { return sentFrameWith(firstMock, `"query"`) })

	firstMock.CloseStream()

	select {
	case err := <-queryErr:
		var sdkErr *sdkerr.Error
		if !errors.As(err, &sdkErr) || sdkErr.Kind != sdkerr.KindTransport {
			t.Fatalf("pending query error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending query never failed")
	}
	if st := s.State(); st != StateClosed {
		t.Fatalf("state = %v", st)
	}
}

func TestQueryPrunesOversizedHistory(t *testing.T) {
	events := &eventLog{}
	spawn, _ := newMockFactory(scriptedResponder("ok"))
	cfg := testSessionConfig(spawn)
	cfg.Events = events.sink
	cfg.Pruning = &PruneConfig{TargetTokens: 50, MaxTokens: 50, Policy: PruneRecentFirst}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	s.mu.Lock()
	for i := 0; i < 4; i++ {
		s.history = append(s.history, textMsg(fmt.Sprintf("m%d", i), types.RoleUser, 40))
	}
	s.mu.Unlock()

	if _, err := s.Query(context.Background(), "go"); err != nil {
		t.Fatalf("query: %v", err)
	}
	if events.count(EventContextUsageIncreased) != 1 || events.count(EventContextPruned) != 1 {
		t.Fatalf("events: %+v", events.events)
	}
	// Pruned history plus the completed turn.
	if h := s.History(); len(h) != 4 {
		t.Fatalf("history after prune = %d messages", len(h))
	}
}

func TestSessionGuardClosesOnce(t *testing.T) {
	spawn, mocks := newMockFactory(nil)
	s, err := NewSession(testSessionConfig(spawn))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	guard := NewSessionGuard(s)
	if guard.Session() != s {
		t.Fatal("guard lost its session")
	}
	guard.Close()
	guard.Close()
	if kills := mocks()[0].KillCount(); kills != 1 {
		t.Fatalf("killed %d times", kills)
	}
}

func TestMockTransportContract(t *testing.T) {
	m := NewMockCliTransport()
	m.FailAfter(1)
	if err := m.Send(json.RawMessage(`{"type":"query"}`)); err != nil {
		t.Fatalf("first send: %v", err)
	}
	err := m.Send(json.RawMessage(`{"type":"query"}`))
	var sdkErr *sdkerr.Error
	if !errors.As(err, &sdkErr) || sdkErr.Kind != sdkerr.KindTransport {
		t.Fatalf("second send error = %v", err)
	}
	if got := len(m.Sent()); got != 1 {
		t.Fatalf("sent log = %d", got)
	}

	m.Queue(json.RawMessage(`{"type":"ready"}`))
	if raw, err := m.Recv(); err != nil || !strings.Contains(string(raw), "ready") {
		t.Fatalf("recv: %v %s", err, raw)
	}
	m.Kill()
	if m.IsAlive() {
		t.Fatal("alive after kill")
	}
	if err := m.Send(json.RawMessage(`{}`)); err == nil {
		t.Fatal("send after kill succeeded")
	}
}

func TestCloseInterruptsReconnectBackoff(t *testing.T) {
	var mu sync.Mutex
	spawns := 0
	var first *MockCliTransport
	spawn := func() (Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		spawns++
		if spawns == 1 {
			first = NewMockCliTransport()
			first.Queue(json.RawMessage(`{"type":"ready"}`))
			return first, nil
		}
		return nil, errors.New("spawn refused")
	}
	cfg := testSessionConfig(spawn)
	cfg.MaxReconnects = 3
	cfg.ReconnectBackoff = sdkerr.Linear(time.Second)
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	first.CloseStream()
	waitFor(t, "failed reconnect attempt", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return spawns == 2
	})

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("close blocked on the reconnect backoff")
	}
	if st := s.State(); st != StateClosed {
		t.Fatalf("state after close = %v", st)
	}
	mu.Lock()
	defer mu.Unlock()
	if spawns != 2 {
		t.Fatalf("close did not stop reconnection: %d spawns", spawns)
	}
}

func TestReconnectFailsInflightQuery(t *testing.T) {
	// Acks controls but never answers queries.
	respond := func(sent json.RawMessage) []json.RawMessage {
		var head frameHeader
		if json.Unmarshal(sent, &head) != nil {
			return nil
		}
		if head.Type == kindControl && head.RequestID != "" {
			return []json.RawMessage{json.RawMessage(
				fmt.Sprintf(`{"type":"control_response","request_id":%q}`, head.RequestID))}
		}
		return nil
	}
	spawn, mocks := newMockFactory(respond)
	cfg := testSessionConfig(spawn)
	cfg.MaxReconnects = 2
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	queryErr := make(chan error, 1)
	go func() {
		_, err := s.Query(context.Background(), "never answered")
		queryErr <- err
	}()
	waitFor(t, "query sent", func() bool { return sentFrameWith(mocks()[0], `"query"`) })

	mocks()[0].CloseStream()
	waitFor(t, "reconnect", func() bool { return len(mocks()) == 2 })

	select {
	case err := <-queryErr:
		var sdkErr *sdkerr.Error
		if !errors.As(err, &sdkErr) || sdkErr.Kind != sdkerr.KindTransport {
			t.Fatalf("pending query error = %v", err)
		}
		if !strings.Contains(err.Error(), "restarted") {
			t.Fatalf("error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight query survived the reconnect unanswered")
	}
	if st := s.State(); st != StateReady {
		t.Fatalf("state after reconnect = %v", st)
	}
}

func TestQueryCancellationClassified(t *testing.T) {
	spawn, _ := newMockFactory(nil)
	s, err := NewSession(testSessionConfig(spawn))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Query(ctx, "never sent")
	sdkErr, ok := sdkerr.As(err)
	if !ok {
		t.Fatalf("error = %v", err)
	}
	if sdkErr.Kind == sdkerr.KindTimeout {
		t.Fatalf("cancellation classified as timeout: %v", err)
	}
	if !strings.Contains(err.Error(), "query cancelled") {
		t.Fatalf("error rendering = %v", err)
	}

	dctx, dcancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer dcancel()
	_, err = s.Query(dctx, "too late")
	sdkErr, ok = sdkerr.As(err)
	if !ok || sdkErr.Kind != sdkerr.KindTimeout {
		t.Fatalf("deadline error = %v", err)
	}
	if strings.Contains(err.Error(), "after 0s") {
		t.Fatalf("error rendering = %v", err)
	}
}
