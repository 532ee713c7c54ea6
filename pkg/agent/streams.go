package agent

import (
	"context"
	"encoding/json"
	"io"

	"github.com/cexll/claudesdk-go/pkg/streaming"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// ReceiveStream is a single-consumer view over one kind of uncorrelated
// frame from the subprocess. Next returns io.EOF once the session closes.
type ReceiveStream[T any] struct {
	session *Session
	sub     *subscription
	decode  func(json.RawMessage) (T, error)
}

func subscribe[T any](s *Session, kind string, decode func(json.RawMessage) (T, error)) *ReceiveStream[T] {
	sub := &subscription{kind: kind, ch: make(chan json.RawMessage, 128)}
	s.mu.Lock()
	closed := s.state == StateClosed
	if !closed {
		s.subs = append(s.subs, sub)
	}
	s.mu.Unlock()
	if closed {
		close(sub.ch)
	}
	return &ReceiveStream[T]{session: s, sub: sub, decode: decode}
}

// Next blocks for the next item. Frames of other kinds never reach this
// stream; decode failures are returned without ending it.
func (r *ReceiveStream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case raw, ok := <-r.sub.ch:
		if !ok {
			return zero, io.EOF
		}
		return r.decode(raw)
	}
}

// Close detaches the stream from the session.
func (r *ReceiveStream[T]) Close() {
	s := r.session
	s.mu.Lock()
	for i, sub := range s.subs {
		if sub == r.sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

func decodeMessageFrame(raw json.RawMessage) (types.Message, error) {
	var fr messageFrame
	err := json.Unmarshal(raw, &fr)
	return fr.Message, err
}

// ReceiveAssistantMessages streams assistant turns as they arrive.
func (s *Session) ReceiveAssistantMessages() *ReceiveStream[types.Message] {
	return subscribe(s, kindAssistantMessage, decodeMessageFrame)
}

// ReceiveUserMessages streams user-side turns echoed by the CLI.
func (s *Session) ReceiveUserMessages() *ReceiveStream[types.Message] {
	return subscribe(s, kindUserMessage, decodeMessageFrame)
}

// ReceiveSystemMessages streams raw system frames.
func (s *Session) ReceiveSystemMessages() *ReceiveStream[json.RawMessage] {
	return subscribe(s, kindSystemMessage, func(raw json.RawMessage) (json.RawMessage, error) {
		return raw, nil
	})
}

// ReceiveStreamEvents streams partial-output events.
func (s *Session) ReceiveStreamEvents() *ReceiveStream[streaming.Event] {
	return subscribe(s, kindStreamEvent, func(raw json.RawMessage) (streaming.Event, error) {
		var fr streamEventFrame
		if err := json.Unmarshal(raw, &fr); err != nil {
			return streaming.Event{}, err
		}
		return streaming.DecodeEvent(fr.Event)
	})
}

// ReceiveResults streams results the dispatcher had no waiter for.
func (s *Session) ReceiveResults() *ReceiveStream[QueryResponse] {
	return subscribe(s, kindResult, func(raw json.RawMessage) (QueryResponse, error) {
		var fr resultFrame
		if err := json.Unmarshal(raw, &fr); err != nil {
			return QueryResponse{}, err
		}
		return QueryResponse{Message: fr.Message, IsComplete: fr.IsComplete}, nil
	})
}
