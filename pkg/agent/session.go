package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cexll/claudesdk-go/pkg/mcp"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/skills"
	"github.com/cexll/claudesdk-go/pkg/telemetry"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// State is the session lifecycle phase.
type State int32

const (
	StateStarting State = iota
	StateReady
	StateQuerying
	StateControlling
	StateReconnecting
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateQuerying:
		return "querying"
	case StateControlling:
		return "controlling"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// SessionConfig wires a session to its subprocess and collaborators.
type SessionConfig struct {
	// Spawn builds a fresh transport. Used at start, on reconnect, and by
	// Fork. Required.
	Spawn func() (Transport, error)

	Model          string
	PermissionMode PermissionMode
	SystemPrompt   string

	// IncludePartialMessages asks the subprocess to forward stream events
	// for in-flight turns; consume them via ReceiveStreamEvents.
	IncludePartialMessages bool

	SpawnTimeout    time.Duration // default 30s
	ShutdownTimeout time.Duration // default 5s
	HookTimeout     time.Duration // default 30s
	MaxReconnects   int           // default 3
	// ReconnectBackoff defaults to Exponential(500ms, 60s).
	ReconnectBackoff sdkerr.Backoff

	Hooks       map[HookEvent]HookHandler
	Permissions PermissionHandler
	Servers     []*mcp.SdkMcpServer
	Skills      *skills.ActiveSet
	Pruning     *PruneConfig
	Events      EventSink
	Logger      *slog.Logger
}

func (c *SessionConfig) withDefaults() SessionConfig {
	cfg := *c
	if cfg.SpawnTimeout <= 0 {
		cfg.SpawnTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = 30 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 3
	}
	if cfg.ReconnectBackoff.Kind == sdkerr.BackoffNone {
		cfg.ReconnectBackoff = sdkerr.Exponential(500*time.Millisecond, 60*time.Second)
	}
	if cfg.PermissionMode == "" {
		cfg.PermissionMode = PermissionDefault
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// QueryResponse is one correlated answer to a query.
type QueryResponse struct {
	Message    types.Message
	IsComplete bool
}

type subscription struct {
	kind string
	ch   chan json.RawMessage
}

// pendingReply is what a correlated waiter receives: a frame from the
// subprocess, or an error when the subprocess is gone.
type pendingReply struct {
	frame json.RawMessage
	err   error
}

// Session is a live full-duplex conversation with one CLI subprocess.
type Session struct {
	cfg SessionConfig
	id  string

	mu        sync.Mutex
	state     State
	inflight  int
	controls  int
	model     string
	permMode  PermissionMode
	history   []ChatMessage
	pending   map[string]chan pendingReply
	subs      []*subscription
	transport Transport

	readyOnce sync.Once
	readyCh   chan struct{}

	dispatcherDone chan struct{}

	closeOnce    sync.Once
	finalizeOnce sync.Once
	// closingCh interrupts reconnection backoff; closedCh fails waiters.
	closingCh chan struct{}
	closedCh  chan struct{}
}

// NewSession spawns the CLI and waits for it to come up.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Spawn == nil {
		return nil, sdkerr.Config("session spawn function is required")
	}
	c := cfg.withDefaults()
	t, err := c.Spawn()
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindTransport, err, "spawning agent")
	}

	s := &Session{
		cfg:            c,
		id:             newRequestID(),
		state:          StateStarting,
		model:          c.Model,
		permMode:       c.PermissionMode,
		pending:        make(map[string]chan pendingReply),
		transport:      t,
		readyCh:        make(chan struct{}),
		dispatcherDone: make(chan struct{}),
		closingCh:      make(chan struct{}),
		closedCh:       make(chan struct{}),
	}
	go s.dispatch()

	// Proceed after the ready handshake or the spawn timeout, whichever
	// comes first.
	select {
	case <-s.readyCh:
	case <-time.After(c.SpawnTimeout):
		s.markReady()
	case <-s.closedCh:
		return nil, sdkerr.Transport("agent exited during startup")
	}

	if err := s.advertiseTools(); err != nil {
		s.Close()
		return nil, err
	}
	s.emit(Event{Kind: EventCreated})
	return s, nil
}

// ID is the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		switch {
		case s.inflight > 0:
			return StateQuerying
		case s.controls > 0:
			return StateControlling
		}
	}
	return s.state
}

// Model is the model queries currently target.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// PermissionMode is the mode the CLI currently runs under.
func (s *Session) PermissionMode() PermissionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permMode
}

// History copies the conversation history.
func (s *Session) History() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.history...)
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateStarting {
			s.state = StateReady
		}
		s.mu.Unlock()
		close(s.readyCh)
	})
}

func (s *Session) advertiseTools() error {
	if len(s.cfg.Servers) == 0 {
		return nil
	}
	ads := make([]serverAd, 0, len(s.cfg.Servers))
	for _, srv := range s.cfg.Servers {
		ads = append(ads, serverAd{Name: srv.Name(), Tools: srv.Tools()})
	}
	return s.sendFrame(controlFrame{Type: kindControl, Subtype: controlRegisterTools, Servers: ads})
}

func (s *Session) sendFrame(v any) error {
	raw, err := encodeFrame(v)
	if err != nil {
		return sdkerr.Wrap(sdkerr.KindProtocol, err, "encoding frame")
	}
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	return t.Send(raw)
}

// dispatch is the session's reader task. It owns the transport's receive
// side for the session's whole life.
func (s *Session) dispatch() {
	defer close(s.dispatcherDone)
	for {
		s.mu.Lock()
		t := s.transport
		s.mu.Unlock()
		raw, err := t.Recv()
		if err != nil {
			if !s.reconnect(err) {
				return
			}
			continue
		}
		s.route(raw)
	}
}

func (s *Session) route(raw json.RawMessage) {
	var head frameHeader
	if err := json.Unmarshal(raw, &head); err != nil {
		s.cfg.Logger.Debug("agent: dropping unparseable frame", "error", err)
		return
	}
	switch head.Type {
	case kindReady:
		s.markReady()
		return
	case kindHookRequest:
		go s.handleHook(raw)
		return
	case kindPermissionRequest:
		go s.handlePermission(raw)
		return
	case kindMcpToolRequest:
		go s.handleToolCall(raw)
		return
	}

	if head.RequestID != "" {
		s.mu.Lock()
		waiter, ok := s.pending[head.RequestID]
		s.mu.Unlock()
		if ok {
			waiter <- pendingReply{frame: raw}
			return
		}
	}
	if head.Type == kindError && head.RequestID == "" {
		var ef errorFrame
		if json.Unmarshal(raw, &ef) == nil {
			s.emit(Event{Kind: EventError, Text: ef.Message})
		}
	}
	s.broadcast(head.Type, raw)
}

func (s *Session) broadcast(kind string, raw json.RawMessage) {
	s.mu.Lock()
	subs := append([]*subscription(nil), s.subs...)
	s.mu.Unlock()
	for _, sub := range subs {
		if sub.kind != kind {
			continue
		}
		select {
		case sub.ch <- raw:
		default:
			s.cfg.Logger.Debug("agent: receive stream full, dropping frame", "kind", kind)
		}
	}
}

// reconnect handles an unexpected EOF or read error. It returns false when
// the dispatcher should exit.
func (s *Session) reconnect(cause error) bool {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.state = StateReconnecting
	model, mode := s.model, s.permMode
	s.mu.Unlock()

	s.cfg.Logger.Warn("agent: subprocess disconnected", "error", cause)

	// Close must be able to interrupt the backoff sleeps.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.closingCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	backoff := s.cfg.ReconnectBackoff
	attempt := 0
	t, _, err := sdkerr.Do(ctx, s.cfg.MaxReconnects-1, func(context.Context) (Transport, error) {
		attempt++
		if s.closingOrClosed() {
			return nil, sdkerr.Other("session closing")
		}
		s.emit(Event{Kind: EventReconnecting, Attempt: attempt})
		t, err := s.cfg.Spawn()
		if err != nil {
			s.cfg.Logger.Warn("agent: reconnect attempt failed", "attempt", attempt, "error", err)
			return nil, &sdkerr.Error{Kind: sdkerr.KindTransport, Message: "respawning agent", Err: err, Backoff: &backoff}
		}
		return t, nil
	})
	if err != nil {
		if s.closingOrClosed() {
			return false
		}
		s.finalize()
		return false
	}

	s.mu.Lock()
	if s.state != StateReconnecting {
		// Close landed while we were respawning; the session must stay down.
		s.mu.Unlock()
		t.Kill()
		return false
	}
	s.transport = t
	s.state = StateReady
	s.mu.Unlock()

	// Requests in flight at disconnect will never be answered by the fresh
	// subprocess; fail them now instead of letting them hang.
	s.failPending(sdkerr.Transport("subprocess restarted"))

	// Restore runtime state the fresh subprocess does not know about.
	if err := s.sendFrame(controlFrame{Type: kindControl, Subtype: controlSetModel, Model: model}); err != nil {
		s.cfg.Logger.Warn("agent: restoring model failed", "error", err)
	}
	if err := s.sendFrame(controlFrame{Type: kindControl, Subtype: controlSetPermissionMode, PermissionMode: mode}); err != nil {
		s.cfg.Logger.Warn("agent: restoring permission mode failed", "error", err)
	}
	s.emit(Event{Kind: EventReconnected})
	return true
}

func (s *Session) closingOrClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosing || s.state == StateClosed
}

// failPending delivers err to every correlated waiter and resets the map.
func (s *Session) failPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]chan pendingReply)
	s.mu.Unlock()
	for _, ch := range pending {
		select {
		case ch <- pendingReply{err: err}:
		default:
		}
	}
}

func (s *Session) registerPending(id string) chan pendingReply {
	ch := make(chan pendingReply, 16)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	return ch
}

func (s *Session) removePending(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Query sends a prompt carrying pruned history and waits for the complete
// result. Partial results for the same request are consumed internally; the
// final message is appended to history.
func (s *Session) Query(ctx context.Context, prompt string) (*QueryResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "agent.query")
	resp, err := s.query(ctx, prompt)
	telemetry.EndSpan(span, err)
	return resp, err
}

func (s *Session) query(ctx context.Context, prompt string) (*QueryResponse, error) {
	if st := s.State(); st == StateClosing || st == StateClosed {
		return nil, sdkerr.Transport("session closed")
	}

	history := s.pruneForQuery()
	systemPrompt := s.cfg.SystemPrompt
	if s.cfg.Skills != nil {
		systemPrompt = s.cfg.Skills.Inject(systemPrompt)
	}

	id := newRequestID()
	ch := s.registerPending(id)
	defer s.removePending(id)

	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	err := s.sendFrame(queryFrame{
		Type:            kindQuery,
		RequestID:       id,
		Prompt:          prompt,
		SystemPrompt:    systemPrompt,
		History:         history,
		PartialMessages: s.cfg.IncludePartialMessages,
	})
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, cancelError("query", ctx.Err())
		case <-s.closedCh:
			return nil, sdkerr.Transport("session closed")
		case reply := <-ch:
			if reply.err != nil {
				return nil, reply.err
			}
			raw := reply.frame
			var head frameHeader
			if err := json.Unmarshal(raw, &head); err != nil {
				return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "decoding response")
			}
			if head.Type == kindError {
				var ef errorFrame
				json.Unmarshal(raw, &ef)
				return nil, sdkerr.Other("agent error: %s", ef.Message)
			}
			var rf resultFrame
			if err := json.Unmarshal(raw, &rf); err != nil {
				return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "decoding result")
			}
			if !rf.IsComplete {
				continue
			}
			s.recordTurn(prompt, rf.Message)
			return &QueryResponse{Message: rf.Message, IsComplete: true}, nil
		}
	}
}

// pruneForQuery trims history to the configured budget and returns the
// slice a query should carry.
func (s *Session) pruneForQuery() []ChatMessage {
	s.mu.Lock()
	history := append([]ChatMessage(nil), s.history...)
	s.mu.Unlock()
	if s.cfg.Pruning == nil {
		return history
	}

	used := EstimateTokens(history)
	if used <= s.cfg.Pruning.TargetTokens {
		return history
	}
	s.emit(Event{Kind: EventContextUsageIncreased, UsedTokens: used, TargetTokens: s.cfg.Pruning.TargetTokens})

	kept, removed, freed := PruneHistory(history, *s.cfg.Pruning)
	if removed > 0 {
		s.mu.Lock()
		s.history = append([]ChatMessage(nil), kept...)
		s.mu.Unlock()
		s.emit(Event{Kind: EventContextPruned, MessagesRemoved: removed, TokensFreed: freed})
	}
	return kept
}

func (s *Session) recordTurn(prompt string, msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		ChatMessage{ID: newRequestID(), Role: types.RoleUser, Content: types.Text(prompt)},
		ChatMessage{ID: newRequestID(), Role: types.RoleAssistant, Content: msg.Content},
	)
}

// control sends one control request and waits for its ack.
func (s *Session) control(ctx context.Context, frame controlFrame) error {
	if st := s.State(); st == StateClosing || st == StateClosed {
		return sdkerr.Transport("session closed")
	}
	id := newRequestID()
	frame.Type = kindControl
	frame.RequestID = id
	ch := s.registerPending(id)
	defer s.removePending(id)

	s.mu.Lock()
	s.controls++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.controls--
		s.mu.Unlock()
	}()

	if err := s.sendFrame(frame); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return cancelError("control", ctx.Err())
	case <-s.closedCh:
		return sdkerr.Transport("session closed")
	case reply := <-ch:
		if reply.err != nil {
			return reply.err
		}
		var head frameHeader
		if json.Unmarshal(reply.frame, &head) == nil && head.Type == kindError {
			var ef errorFrame
			json.Unmarshal(reply.frame, &ef)
			return sdkerr.Other("agent error: %s", ef.Message)
		}
		return nil
	}
}

// cancelError classifies caller cancellation: deadline expiry stays a
// timeout, an explicit cancel does not.
func cancelError(op string, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return sdkerr.Wrap(sdkerr.KindTimeout, cause, "%s deadline exceeded", op)
	}
	return sdkerr.Wrap(sdkerr.KindOther, cause, "%s cancelled", op)
}

// SetModel switches the model for subsequent queries once the CLI acks.
func (s *Session) SetModel(ctx context.Context, model string) error {
	if err := s.control(ctx, controlFrame{Subtype: controlSetModel, Model: model}); err != nil {
		return err
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	return nil
}

// SetPermissionMode switches the permission mode once the CLI acks.
func (s *Session) SetPermissionMode(ctx context.Context, mode PermissionMode) error {
	if err := s.control(ctx, controlFrame{Subtype: controlSetPermissionMode, PermissionMode: mode}); err != nil {
		return err
	}
	s.mu.Lock()
	s.permMode = mode
	s.mu.Unlock()
	return nil
}

// Interrupt asks the CLI to abandon the in-flight query. It does not wait;
// the query returns whatever the CLI delivers.
func (s *Session) Interrupt() error {
	return s.sendFrame(controlFrame{Type: kindControl, Subtype: controlInterrupt})
}

// Fork spawns an independent session seeded with a snapshot of this
// session's history, model, permission mode, and active skills. Later
// mutations on either side stay private.
func (s *Session) Fork(ctx context.Context) (*Session, error) {
	_, span := telemetry.StartSpan(ctx, "agent.fork")
	child, err := s.fork()
	telemetry.EndSpan(span, err)
	return child, err
}

func (s *Session) fork() (*Session, error) {
	s.mu.Lock()
	cfg := s.cfg
	cfg.Model = s.model
	cfg.PermissionMode = s.permMode
	history := append([]ChatMessage(nil), s.history...)
	s.mu.Unlock()
	if cfg.Skills != nil {
		cfg.Skills = cfg.Skills.Snapshot()
	}

	child, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	child.mu.Lock()
	child.history = history
	child.mu.Unlock()
	s.emit(Event{Kind: EventForked, ParentID: s.id, ChildID: child.id})
	return child, nil
}

// Close shuts the session down: graceful shutdown request, then a kill
// after the grace period. Idempotent; concurrent callers all observe the
// closed session.
func (s *Session) Close() error {
	s.closeOnce.Do(s.doClose)
	<-s.closedCh
	return nil
}

func (s *Session) doClose() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		s.finalize()
		return
	}
	s.state = StateClosing
	t := s.transport
	s.mu.Unlock()
	close(s.closingCh)
	s.emit(Event{Kind: EventClosing})

	s.sendFrame(controlFrame{Type: kindControl, Subtype: controlShutdown})
	select {
	case <-s.dispatcherDone:
	case <-time.After(s.cfg.ShutdownTimeout):
	}
	t.Kill()
	<-s.dispatcherDone
	s.finalize()
}

// finalize is the single place the session reaches Closed: pending callers
// fail, receive streams end, the event fires.
func (s *Session) finalize() {
	s.finalizeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		// Pending waiters observe closedCh and fail with Transport.
		s.pending = make(map[string]chan pendingReply)
		subs := s.subs
		s.subs = nil
		s.mu.Unlock()

		close(s.closedCh)
		for _, sub := range subs {
			close(sub.ch)
		}
		s.emit(Event{Kind: EventClosed})
	})
}

// SessionGuard runs Close exactly once, even on panic or early return.
type SessionGuard struct {
	session *Session
	once    sync.Once
}

// NewSessionGuard wraps a session for deferred cleanup.
func NewSessionGuard(s *Session) *SessionGuard {
	return &SessionGuard{session: s}
}

// Session returns the guarded session.
func (g *SessionGuard) Session() *Session { return g.session }

// Close releases the session. Safe to call multiple times.
func (g *SessionGuard) Close() error {
	var err error
	g.once.Do(func() { err = g.session.Close() })
	return err
}
