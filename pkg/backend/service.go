package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/diff"
	"github.com/killallgit/canvaschat/pkg/logger"
	"github.com/tmc/langchaingo/llms"
)

const (
	// DefaultMaxCompletionTokens applies when a request names no limit
	DefaultMaxCompletionTokens = 150
	// CodeSuggestionMaxTokens bounds the rewritten canvas
	CodeSuggestionMaxTokens = 2048
)

// ErrNoMessages is returned for requests without a user message
var ErrNoMessages = errors.New("request has no messages")

// Service answers chat requests with a LangChain model, augmenting them
// with chat memory when it is configured.
type Service struct {
	llm    llms.Model
	memory *Memory
	log    *logger.ComponentLogger
}

// NewService creates a service. memory may be nil.
func NewService(llm llms.Model, memory *Memory) *Service {
	return &Service{
		llm:    llm,
		memory: memory,
		log:    logger.WithComponent("backend"),
	}
}

// Reply is a chat completion with the memory context it was built from
type Reply struct {
	Content string
	Context []string
}

// DiffReply is a Reply preceded by an optional canvas diff
type DiffReply struct {
	Reply
	Diff string
}

// Chat answers the conversation in req. The last user message and the
// answer are added to memory afterwards.
func (s *Service) Chat(ctx context.Context, req chat.ChatRequest) (Reply, error) {
	query := req.LastUserContent()
	if len(req.Messages) == 0 || query == "" {
		return Reply{}, ErrNoMessages
	}

	memoryContext := s.search(ctx, query)
	system, err := ContextPrompt(memoryContext)
	if err != nil {
		return Reply{}, err
	}

	messages := append([]llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
	}, chat.ToMessageContent(req.Messages)...)

	maxTokens := req.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxCompletionTokens
	}

	response, err := s.llm.GenerateContent(ctx, messages, llms.WithMaxTokens(maxTokens))
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return Reply{}, errors.New("chat completion returned no choices")
	}
	answer := response.Choices[0].Content

	s.remember(ctx, query)
	s.remember(ctx, answer)

	s.log.Debug("Chat completion", "messages", len(messages), "context", len(memoryContext), "length", len(answer))
	return Reply{Content: answer, Context: memoryContext}, nil
}

// SuggestCode asks the model to rewrite code according to request and
// returns the new code without markdown fences.
func (s *Service) SuggestCode(ctx context.Context, request, code string) (string, error) {
	prompt, err := CodePrompt(request, code)
	if err != nil {
		return "", err
	}
	text, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt, llms.WithMaxTokens(CodeSuggestionMaxTokens))
	if err != nil {
		return "", fmt.Errorf("code suggestion failed: %w", err)
	}
	return matchTrailingNewline(stripCodeFence(text), code), nil
}

// ChatDiff rewrites the canvas for the last user message, diffs it against
// the current canvas and adds the conversational answer.
func (s *Service) ChatDiff(ctx context.Context, req chat.ChatRequest) (DiffReply, error) {
	query := req.LastUserContent()
	if query == "" {
		return DiffReply{}, ErrNoMessages
	}

	suggestion, err := s.SuggestCode(ctx, query, req.CanvasCode)
	if err != nil {
		return DiffReply{}, err
	}

	patch, err := diff.Unified(req.CanvasCode, suggestion)
	if err != nil {
		return DiffReply{}, err
	}

	reply, err := s.Chat(ctx, req)
	if err != nil {
		return DiffReply{}, err
	}
	return DiffReply{Reply: reply, Diff: patch}, nil
}

func (s *Service) search(ctx context.Context, query string) []string {
	if s.memory == nil {
		return []string{}
	}
	found, err := s.memory.Search(ctx, query)
	if err != nil {
		s.log.Warn("Memory search failed", "error", err)
		return []string{}
	}
	return found
}

func (s *Service) remember(ctx context.Context, text string) {
	if s.memory == nil {
		return
	}
	if err := s.memory.Add(ctx, text); err != nil {
		s.log.Warn("Memory add failed", "error", err)
	}
}

// stripCodeFence removes a markdown code fence wrapping the whole text
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return text
	}
	body := strings.TrimSuffix(trimmed, "```")
	newline := strings.IndexByte(body, '\n')
	if newline < 0 {
		return text
	}
	return strings.TrimRight(body[newline+1:], "\n")
}

// matchTrailingNewline gives code the same trailing newline as original so
// the diff does not report a spurious last-line change
func matchTrailingNewline(code, original string) string {
	code = strings.TrimRight(code, "\n")
	if strings.HasSuffix(original, "\n") {
		return code + "\n"
	}
	return code
}
