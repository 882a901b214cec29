package tokens

import (
	"strings"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/logger"
	"github.com/pkoukk/tiktoken-go"
)

// messageOverhead approximates the boundary tokens around each chat message
const messageOverhead = 4

// TokenCounter counts tokens in prompts and replies. Without an encoder it
// falls back to an estimate.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for modelName. When no encoding can be
// loaded the counter estimates instead of failing.
func NewTokenCounter(modelName string) *TokenCounter {
	encoder, err := tiktoken.GetEncoding(getEncodingForModel(modelName))
	if err != nil {
		logger.WithComponent("tokens").Debug("Token encoding unavailable, estimating", "model", modelName, "error", err)
		return &TokenCounter{}
	}
	return &TokenCounter{encoder: encoder}
}

// CountTokens counts the tokens in text
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.encoder == nil {
		return estimateTokens(text)
	}
	return len(tc.encoder.Encode(text, nil, nil))
}

// CountRequest counts the tokens a chat request sends: every message with
// its role, plus the canvas
func (tc *TokenCounter) CountRequest(req chat.ChatRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += tc.CountTokens(msg.Role) + tc.CountTokens(msg.Content) + messageOverhead
	}
	if req.HasCanvas() {
		total += tc.CountTokens(req.CanvasCode)
	}
	return total + 3 // every reply is primed with the assistant role
}

// getEncodingForModel returns the appropriate encoding for a model
func getEncodingForModel(modelName string) string {
	modelLower := strings.ToLower(modelName)

	if strings.Contains(modelLower, "davinci") || strings.Contains(modelLower, "curie") {
		return "p50k_base"
	}
	// Works reasonably for local models too
	return "cl100k_base"
}

// estimateTokens approximates one token per word or per four bytes,
// whichever is higher
func estimateTokens(text string) int {
	wordEstimate := len(strings.Fields(text))
	charEstimate := len(text) / 4

	if wordEstimate > charEstimate {
		return wordEstimate
	}
	return charEstimate
}
