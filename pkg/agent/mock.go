package agent

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
)

// MockCliTransport is an in-memory Transport for tests. Responses are
// delivered FIFO; every sent frame is appended to a log. It can be told to
// fail after N sends or to delay each operation by a fixed duration.
type MockCliTransport struct {
	// Respond, when set, is invoked for every sent frame; its return values
	// are queued as responses. Lets tests script the CLI side without
	// knowing client-generated request ids up front.
	Respond func(sent json.RawMessage) []json.RawMessage

	responses chan json.RawMessage
	closed    chan struct{}

	mu        sync.Mutex
	sent      []json.RawMessage
	failAfter int
	delay     time.Duration
	dead      bool
	kills     int
	closeOnce sync.Once
}

// NewMockCliTransport returns an empty mock with no failure point.
func NewMockCliTransport() *MockCliTransport {
	return &MockCliTransport{
		responses: make(chan json.RawMessage, 256),
		closed:    make(chan struct{}),
		failAfter: -1,
	}
}

// Queue appends a response the next Recv will deliver.
func (m *MockCliTransport) Queue(msg json.RawMessage) {
	m.responses <- append(json.RawMessage(nil), msg...)
}

// FailAfter makes Send return a Transport error once n frames have been
// accepted.
func (m *MockCliTransport) FailAfter(n int) {
	m.mu.Lock()
	m.failAfter = n
	m.mu.Unlock()
}

// Delay makes every Send and Recv pause for d first.
func (m *MockCliTransport) Delay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// Sent returns a copy of the send log.
func (m *MockCliTransport) Sent() []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]json.RawMessage(nil), m.sent...)
}

// KillCount reports how many times Kill ran.
func (m *MockCliTransport) KillCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kills
}

func (m *MockCliTransport) pause() {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (m *MockCliTransport) Send(msg json.RawMessage) error {
	m.pause()
	m.mu.Lock()
	if m.dead {
		m.mu.Unlock()
		return sdkerr.Transport("mock transport is dead")
	}
	if m.failAfter >= 0 && len(m.sent) >= m.failAfter {
		m.mu.Unlock()
		return sdkerr.Transport("mock transport failed after %d messages", m.failAfter)
	}
	m.sent = append(m.sent, append(json.RawMessage(nil), msg...))
	respond := m.Respond
	m.mu.Unlock()

	if respond != nil {
		for _, reply := range respond(msg) {
			m.Queue(reply)
		}
	}
	return nil
}

func (m *MockCliTransport) Recv() (json.RawMessage, error) {
	m.pause()
	select {
	case msg := <-m.responses:
		return msg, nil
	case <-m.closed:
		// Drain anything queued before the close.
		select {
		case msg := <-m.responses:
			return msg, nil
		default:
			return nil, io.EOF
		}
	}
}

func (m *MockCliTransport) IsAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.dead
}

// CloseStream simulates the CLI exiting cleanly: the next Recv after the
// queue drains returns EOF.
func (m *MockCliTransport) CloseStream() {
	m.closeOnce.Do(func() { close(m.closed) })
}

func (m *MockCliTransport) Kill() error {
	m.mu.Lock()
	m.dead = true
	m.kills++
	m.mu.Unlock()
	m.CloseStream()
	return nil
}
