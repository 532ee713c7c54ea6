package streaming

import (
	"bufio"
	"io"
	"strings"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// Stream consumes server-sent events from an HTTP response body. It is
// single-consumer and non-restartable; iteration ends at message_stop, EOF,
// or the first malformed data payload.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	current Event
	err     error
	done    bool

	eventName string
	dataLines []string
}

// maxLineBytes bounds a single SSE line. Large deltas stay well under this.
const maxLineBytes = 1 << 20

// New wraps a response body in an SSE stream.
func New(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Stream{body: body, scanner: scanner}
}

// Next advances to the next event. It returns false at end of stream or on
// error; check Err afterwards.
func (s *Stream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			if evt, ok := s.flush(); ok {
				s.current = evt
				if evt.Type == MessageStop {
					s.done = true
				}
				return s.err == nil
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, ":"):
			// Comment frame (heartbeats); skip.
		case strings.HasPrefix(line, "event:"):
			s.eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			s.dataLines = append(s.dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Unknown field names are tolerated per the SSE spec.
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.err = sdkerr.Wrap(sdkerr.KindConnection, err, "stream read failed")
		return false
	}
	// EOF with a buffered frame still dispatches it.
	if evt, ok := s.flush(); ok && s.err == nil {
		s.current = evt
		s.done = true
		return true
	}
	s.done = true
	return false
}

func (s *Stream) flush() (Event, bool) {
	if s.eventName == "" && len(s.dataLines) == 0 {
		return Event{}, false
	}
	name := s.eventName
	data := strings.Join(s.dataLines, "\n")
	s.eventName = ""
	s.dataLines = nil

	if data == "" {
		// Event with no payload: surface as Unknown so consumers see it.
		return Event{Type: Unknown, Name: name}, true
	}
	evt, err := decodeEvent(name, []byte(data))
	if err != nil {
		s.err = sdkerr.Protocol("malformed stream data for event %q: %v", name, err)
		return Event{}, true
	}
	return evt, true
}

// Current returns the event produced by the last successful Next.
func (s *Stream) Current() Event { return s.current }

// Err reports a terminal stream error, if any.
func (s *Stream) Err() error { return s.err }

// Close releases the underlying body. Safe to call at any point.
func (s *Stream) Close() error {
	s.done = true
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}

// GetFinalMessage drains the stream, accumulating deltas into a complete
// message. Ping and unknown events are ignored; iteration stops at
// message_stop.
func (s *Stream) GetFinalMessage() (*types.Message, error) {
	acc := NewAccumulator()
	for s.Next() {
		if err := acc.Add(s.Current()); err != nil {
			return nil, err
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return acc.Message()
}
