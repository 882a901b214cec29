package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/killallgit/canvaschat/pkg/diff"
	"github.com/killallgit/canvaschat/pkg/logger"
	"github.com/tmc/langchaingo/llms"
)

// LangChainTransport streams replies straight from a LangChain model. When
// the request carries canvas text, the model is told to express canvas edits
// as a delimited unified diff.
type LangChainTransport struct {
	llm   llms.Model
	model string
}

// NewLangChainTransport wraps a LangChain model
func NewLangChainTransport(llm llms.Model, model string) *LangChainTransport {
	return &LangChainTransport{llm: llm, model: model}
}

// Open implements Transport using LangChain Go's streaming
func (lt *LangChainTransport) Open(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("request has no messages")
	}
	messages := toLangChainMessages(req)

	var opts []llms.CallOption
	if req.MaxCompletionTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxCompletionTokens))
	}

	outputChan := make(chan StreamChunk, 100)

	go func() {
		defer close(outputChan)
		log := logger.WithComponent("langchain_transport")

		streamed := false
		streamingFunc := func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			select {
			case outputChan <- StreamChunk{Content: string(chunk)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		callOpts := append(opts, llms.WithStreamingFunc(streamingFunc))

		response, err := lt.llm.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			log.Debug("Generation failed", "model", lt.model, "error", err)
			send(ctx, outputChan, StreamChunk{Err: fmt.Errorf("generation failed: %w", err)})
			return
		}

		// Some models return the whole reply without invoking the streaming func
		if !streamed && response != nil && len(response.Choices) > 0 && response.Choices[0].Content != "" {
			send(ctx, outputChan, StreamChunk{Content: response.Choices[0].Content})
		}
	}()

	return outputChan, nil
}

func toLangChainMessages(req ChatRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.HasCanvas() {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, CanvasInstructions(req.CanvasCode, req.AICanEditCanvas)))
	}
	return append(messages, ToMessageContent(req.Messages)...)
}

// ToMessageContent converts wire messages to LangChain messages. Unknown
// roles are sent as human messages.
func ToMessageContent(msgs []RequestMessage) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(msgs))
	for _, msg := range msgs {
		messageType := llms.ChatMessageTypeHuman
		switch msg.Role {
		case RoleSystem:
			messageType = llms.ChatMessageTypeSystem
		case RoleAssistant:
			messageType = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(messageType, msg.Content))
	}
	return messages
}

// CanvasInstructions is the system prompt describing the canvas and the diff
// reply format.
func CanvasInstructions(canvas string, allowEdits bool) string {
	var b strings.Builder
	b.WriteString("The user is working on the following document in a canvas.\n\n")
	b.WriteString("--- CODE ---\n")
	b.WriteString(canvas)
	if !strings.HasSuffix(canvas, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("--- END CODE ---\n\n")
	if !allowEdits {
		b.WriteString("You may discuss the document but must not propose edits to it.")
		return b.String()
	}
	fmt.Fprintf(&b, "When the user asks for a change, reply with a unified diff turning the document into its new version. "+
		"Put the diff between a line containing exactly %s and a line containing exactly %s, "+
		"use the file names original and new, and include at least three lines of context around each change. "+
		"After the diff, briefly explain the change in plain text. Send at most one diff per reply.",
		diff.StartMarker, diff.EndMarker)
	return b.String()
}
