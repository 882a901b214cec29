package stream

// State represents the current state of an assembler
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
	StateAbandoned
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAbandoned
}

// EventType identifies an assembler event
type EventType int

const (
	EventStarted EventType = iota
	EventTextUpdated
	EventDiffAvailable
	EventCompleted
	EventFailed
	EventAbandoned
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventTextUpdated:
		return "text_updated"
	case EventDiffAvailable:
		return "diff_available"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Event is a state change reported by an assembler. Text is the displayed
// message content after the change; Diff is set for EventDiffAvailable and
// Err for EventFailed and EventAbandoned.
type Event struct {
	Type      EventType
	Epoch     uint64
	MessageID string
	Text      string
	Diff      string
	Err       error
}
