package chat

import (
	"context"
	"fmt"
	"strings"
)

// StreamChunk is one decoded fragment of a streamed reply. A chunk with a
// non-nil Err is the last value sent before the channel closes.
type StreamChunk struct {
	Content string
	Err     error
}

// Transport opens a streamed reply for a request. The returned channel is
// closed at end of stream. Failures before any byte is read are returned
// directly; later failures arrive as a chunk carrying Err.
type Transport interface {
	Open(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// RequestMessage is the wire form of a Message.
type RequestMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the outbound payload: the conversation history plus the
// optional canvas text and edit permission.
type ChatRequest struct {
	Messages            []RequestMessage `json:"messages"`
	CanvasCode          string           `json:"canvas_code,omitempty"`
	AICanEditCanvas     bool             `json:"ai_can_edit_canvas"`
	MaxCompletionTokens int              `json:"max_completion_tokens,omitempty"`
}

// ChatResponse is the JSON body of a non-streaming chat reply.
type ChatResponse struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Context []string `json:"context,omitempty"`
}

// HasCanvas reports whether the request carries canvas text.
func (r ChatRequest) HasCanvas() bool {
	return r.CanvasCode != ""
}

// LastUserContent returns the content of the newest user message.
func (r ChatRequest) LastUserContent() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// NewChatRequest builds the payload for a conversation. Empty messages,
// such as an assistant reply that never received text, are left out.
func NewChatRequest(history []Message, canvasText string, allowEdits bool, maxTokens int) ChatRequest {
	messages := make([]RequestMessage, 0, len(history))
	for _, msg := range history {
		if msg.IsEmpty() {
			continue
		}
		messages = append(messages, RequestMessage{Role: msg.Role, Content: msg.Content})
	}
	return ChatRequest{
		Messages:            messages,
		CanvasCode:          canvasText,
		AICanEditCanvas:     allowEdits && canvasText != "",
		MaxCompletionTokens: maxTokens,
	}
}

// TransportError reports a non-2xx reply. Detail holds the server's error
// message when the body was JSON.
type TransportError struct {
	StatusCode int
	Body       string
	Detail     string
}

func (e *TransportError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, msg)
}
