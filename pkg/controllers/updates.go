package controllers

import "github.com/killallgit/canvaschat/pkg/stream"

// UpdateType identifies a presentation update
type UpdateType int

const (
	StreamStarted UpdateType = iota
	TextUpdated
	DiffAvailable
	PatchApplied
	PatchRejected
	StreamCompleted
	StreamFailed
	StreamAbandoned
)

// String returns the wire name of the update type
func (t UpdateType) String() string {
	switch t {
	case StreamStarted:
		return "stream_started"
	case TextUpdated:
		return "text_updated"
	case DiffAvailable:
		return "diff_available"
	case PatchApplied:
		return "patch_applied"
	case PatchRejected:
		return "patch_rejected"
	case StreamCompleted:
		return "stream_completed"
	case StreamFailed:
		return "stream_failed"
	case StreamAbandoned:
		return "stream_abandoned"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the update ends an exchange
func (t UpdateType) IsTerminal() bool {
	return t == StreamCompleted || t == StreamFailed || t == StreamAbandoned
}

// Update is one presentation event of an exchange.
//
// Text is the displayed assistant text, Diff the proposed patch, Canvas the
// committed canvas after PatchApplied and Reason the rejection message after
// PatchRejected. Error carries the raw failure for logging; it is never meant
// for display.
type Update struct {
	Type      UpdateType `json:"type"`
	Epoch     uint64     `json:"epoch"`
	MessageID string     `json:"message_id,omitempty"`
	Text      string     `json:"text,omitempty"`
	Diff      string     `json:"diff,omitempty"`
	Canvas    string     `json:"canvas,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Error     error      `json:"-"`
}

func updateTypeFor(t stream.EventType) UpdateType {
	switch t {
	case stream.EventStarted:
		return StreamStarted
	case stream.EventTextUpdated:
		return TextUpdated
	case stream.EventDiffAvailable:
		return DiffAvailable
	case stream.EventCompleted:
		return StreamCompleted
	case stream.EventFailed:
		return StreamFailed
	default:
		return StreamAbandoned
	}
}

// MarshalText encodes the type by name
func (t UpdateType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
