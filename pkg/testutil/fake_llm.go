package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// FakeLLM is an llms.Model with scripted replies. Unlike llms/fake it
// honours WithStreamingFunc, delivering each reply in chunks of chunkSize
// bytes.
type FakeLLM struct {
	mu           sync.Mutex
	responses    []string
	currentIndex int
	callCount    int
	chunkSize    int
	lastPrompt   string
	lastMessages []llms.MessageContent
	lastOptions  llms.CallOptions
	errorOnCall  int // If > 0, return error on this call number
	errorMessage string
}

// NewFakeLLM creates a new fake LLM with predefined responses
func NewFakeLLM(responses ...string) *FakeLLM {
	return &FakeLLM{
		responses: responses,
		chunkSize: 5,
	}
}

// Call implements llms.Model
func (f *FakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// GenerateContent implements llms.Model
func (f *FakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	response, chunkSize, err := f.next(messages, opts)
	if err != nil {
		return nil, err
	}

	if opts.StreamingFunc != nil {
		for i := 0; i < len(response); i += chunkSize {
			end := min(i+chunkSize, len(response))
			if err := opts.StreamingFunc(ctx, []byte(response[i:end])); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    response,
				StopReason: "stop",
			},
		},
	}, nil
}

func (f *FakeLLM) next(messages []llms.MessageContent, opts llms.CallOptions) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.callCount++
	f.lastMessages = messages
	f.lastPrompt = promptText(messages)
	f.lastOptions = opts

	if f.errorOnCall > 0 && f.callCount == f.errorOnCall {
		if f.errorMessage != "" {
			return "", 0, fmt.Errorf("%s", f.errorMessage)
		}
		return "", 0, fmt.Errorf("fake error on call %d", f.callCount)
	}

	if len(f.responses) == 0 {
		return "", 0, fmt.Errorf("no responses configured")
	}

	response := f.responses[f.currentIndex]
	f.currentIndex = (f.currentIndex + 1) % len(f.responses)

	chunkSize := f.chunkSize
	if chunkSize <= 0 {
		chunkSize = max(len(response), 1)
	}
	return response, chunkSize, nil
}

func promptText(messages []llms.MessageContent) string {
	var parts []string
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				parts = append(parts, text.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Reset resets the response index and call count
func (f *FakeLLM) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentIndex = 0
	f.callCount = 0
	f.lastPrompt = ""
	f.lastMessages = nil
	f.lastOptions = llms.CallOptions{}
}

// AddResponse adds a new response to the LLM
func (f *FakeLLM) AddResponse(response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
}

// SetChunkSize sets the number of bytes per streamed chunk. Zero streams
// each reply as a single chunk.
func (f *FakeLLM) SetChunkSize(size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunkSize = size
}

// SetErrorOnCall configures the LLM to return an error on a specific call
func (f *FakeLLM) SetErrorOnCall(callNumber int, errorMessage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorOnCall = callNumber
	f.errorMessage = errorMessage
}

// GetCallCount returns the number of generate calls
func (f *FakeLLM) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// GetLastPrompt returns the text parts of the last call joined by newlines
func (f *FakeLLM) GetLastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

// GetLastMessages returns the messages of the last call
func (f *FakeLLM) GetLastMessages() []llms.MessageContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMessages
}

// GetLastOptions returns the resolved options of the last call
func (f *FakeLLM) GetLastOptions() llms.CallOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOptions
}

// PredefinedResponses provides common reply patterns
var PredefinedResponses = struct {
	SimpleChat []string
	WithDiff   []string
	Malformed  []string
}{
	SimpleChat: []string{
		"Hello! How can I help you today?",
		"I understand your question. Here's my response.",
	},
	WithDiff: []string{
		"Here is the change.\n--- DIFF ---\n@@ -1,3 +1,3 @@\n function helloWorld() {\n-  console.log('Hello, world!');\n+  console.log('Hello, canvas!');\n }\n--- END DIFF ---\nLet me know if you need more.",
	},
	Malformed: []string{
		"Starting a change\n--- DIFF ---\n@@ -1 +1 @@\n-a\n+b\n",
	},
}
