package controllers

import (
	"sync"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/stream"
)

// Proposal is a diff surfaced to the user and not yet accepted or rejected.
type Proposal struct {
	Diff      string `json:"diff"`
	MessageID string `json:"message_id"`
	Epoch     uint64 `json:"epoch"`
	Reason    string `json:"reason,omitempty"` // set when an automatic apply was rejected
}

// Session is an immutable snapshot of a controller's state.
type Session struct {
	ID         string         `json:"id"`
	Messages   []chat.Message `json:"messages"`
	Canvas     string         `json:"canvas"`
	Pending    *Proposal      `json:"pending,omitempty"`
	Status     string         `json:"status"`
	Epoch      uint64         `json:"epoch"`
	AllowEdits bool           `json:"allow_edits"`
}

// IsStreaming reports whether an exchange was in flight when the snapshot was taken
func (s Session) IsStreaming() bool {
	return s.Status == stream.StateStreaming.String()
}

// conversationStore is the epoch-guarded conversation log. Only the
// controller and the assembler of the current epoch may write to it.
type conversationStore struct {
	mu    sync.Mutex
	epoch uint64
	conv  chat.Conversation
}

func newConversationStore(conv chat.Conversation) *conversationStore {
	return &conversationStore{conv: conv}
}

// AppendMessage implements stream.Store
func (s *conversationStore) AppendMessage(epoch uint64, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return stream.ErrStaleEpoch
	}
	s.conv = chat.AddMessage(s.conv, msg)
	return nil
}

// ReplaceLastContent implements stream.Store
func (s *conversationStore) ReplaceLastContent(epoch uint64, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return stream.ErrStaleEpoch
	}
	conv, ok := chat.ReplaceLastContent(s.conv, id, content)
	if !ok {
		// Only the controller appends between assembler writes, and it
		// advances the epoch first, so this means a stale writer
		return stream.ErrStaleEpoch
	}
	s.conv = conv
	return nil
}

// advance starts a new epoch, invalidating every earlier writer
func (s *conversationStore) advance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

func (s *conversationStore) current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *conversationStore) conversation() chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// reset advances the epoch and replaces the conversation
func (s *conversationStore) reset(conv chat.Conversation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.conv = conv
	return s.epoch
}
