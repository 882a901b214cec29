package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/killallgit/canvaschat/pkg/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
)

// scriptedModel streams fixed chunks through the streaming callback
type scriptedModel struct {
	chunks   []string
	err      error
	received []llms.MessageContent
	options  llms.CallOptions
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.received = messages
	for _, opt := range options {
		opt(&m.options)
	}
	for _, c := range m.chunks {
		if m.options.StreamingFunc != nil {
			if err := m.options.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ignored when streamed"}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainTransport(t *testing.T) {
	req := ChatRequest{
		Messages: []RequestMessage{
			{Role: RoleUser, Content: "Rename the function"},
		},
		CanvasCode:          "function helloWorld() {}",
		AICanEditCanvas:     true,
		MaxCompletionTokens: 200,
	}

	t.Run("should forward streamed chunks in order", func(t *testing.T) {
		model := &scriptedModel{chunks: []string{"Hello ", "world. ", diff.StartMarker + "\n"}}
		chunks, err := NewLangChainTransport(model, "test").Open(context.Background(), req)
		require.NoError(t, err)

		text, err := collect(t, chunks)
		require.NoError(t, err)
		assert.Equal(t, "Hello world. --- DIFF ---\n", text)
		assert.Equal(t, 200, model.options.MaxTokens)
	})

	t.Run("should describe the canvas and diff format in a system message", func(t *testing.T) {
		model := &scriptedModel{}
		chunks, err := NewLangChainTransport(model, "test").Open(context.Background(), req)
		require.NoError(t, err)
		_, err = collect(t, chunks)
		require.NoError(t, err)

		require.Len(t, model.received, 2)
		assert.Equal(t, llms.ChatMessageTypeSystem, model.received[0].Role)
		system := model.received[0].Parts[0].(llms.TextContent).Text
		assert.Contains(t, system, "function helloWorld() {}")
		assert.Contains(t, system, diff.StartMarker)
		assert.Contains(t, system, diff.EndMarker)
		assert.Equal(t, llms.ChatMessageTypeHuman, model.received[1].Role)
	})

	t.Run("should emit the whole reply when the model does not stream", func(t *testing.T) {
		model := fake.NewFakeLLM([]string{"complete reply"})
		chunks, err := NewLangChainTransport(model, "fake").Open(context.Background(), ChatRequest{Messages: req.Messages})
		require.NoError(t, err)

		text, err := collect(t, chunks)
		require.NoError(t, err)
		assert.Equal(t, "complete reply", text)
	})

	t.Run("should report generation errors as the last chunk", func(t *testing.T) {
		model := &scriptedModel{chunks: []string{"partial"}, err: errors.New("connection reset")}
		chunks, err := NewLangChainTransport(model, "test").Open(context.Background(), req)
		require.NoError(t, err)

		text, err := collect(t, chunks)
		assert.Equal(t, "partial", text)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("should reject an empty request", func(t *testing.T) {
		_, err := NewLangChainTransport(&scriptedModel{}, "test").Open(context.Background(), ChatRequest{})
		assert.Error(t, err)
	})
}

func TestCanvasInstructions(t *testing.T) {
	withEdits := CanvasInstructions("x = 1", true)
	assert.Contains(t, withEdits, "--- CODE ---\nx = 1\n--- END CODE ---")
	assert.Contains(t, withEdits, "original and new")

	readOnly := CanvasInstructions("x = 1\n", false)
	assert.NotContains(t, readOnly, diff.StartMarker)
	assert.Contains(t, readOnly, "must not propose edits")
}
