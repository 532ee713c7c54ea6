package agent

// EventKind discriminates lifecycle events.
type EventKind string

const (
	EventCreated               EventKind = "created"
	EventForked                EventKind = "forked"
	EventClosing               EventKind = "closing"
	EventClosed                EventKind = "closed"
	EventReconnecting          EventKind = "reconnecting"
	EventReconnected           EventKind = "reconnected"
	EventError                 EventKind = "error"
	EventContextUsageIncreased EventKind = "context_usage_increased"
	EventContextPruned         EventKind = "context_pruned"
)

// Event is one lifecycle notification. Only the fields relevant to the kind
// are set.
type Event struct {
	Kind EventKind

	// Forked.
	ParentID string
	ChildID  string

	// Reconnecting.
	Attempt int

	// Error.
	Text string

	// ContextUsageIncreased.
	UsedTokens   int
	TargetTokens int

	// ContextPruned.
	MessagesRemoved int
	TokensFreed     int
}

// EventSink receives lifecycle events synchronously with the state change
// that produced them. Sinks must not call back into the session.
type EventSink func(Event)

func (s *Session) emit(evt Event) {
	if s.cfg.Events != nil {
		s.cfg.Events(evt)
	}
}
