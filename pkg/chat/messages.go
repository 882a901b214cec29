package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func newMessage(role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func NewUserMessage(content string) Message {
	return newMessage(RoleUser, strings.TrimSpace(content))
}

func NewAssistantMessage(content string) Message {
	return newMessage(RoleAssistant, content)
}

func NewSystemMessage(content string) Message {
	return newMessage(RoleSystem, content)
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}

func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// WithContent returns a copy of the message carrying new content. The ID is
// kept so the message stays the same log entry.
func (m Message) WithContent(content string) Message {
	m.Content = content
	return m
}
