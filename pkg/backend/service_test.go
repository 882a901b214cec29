package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/killallgit/canvaschat/pkg/diff"
	"github.com/killallgit/canvaschat/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func userRequest(content string) chat.ChatRequest {
	return chat.ChatRequest{Messages: []chat.RequestMessage{{Role: chat.RoleUser, Content: content}}}
}

func TestServiceChat(t *testing.T) {
	ctx := context.Background()

	t.Run("should prepend the context prompt", func(t *testing.T) {
		llm := testutil.NewFakeLLM("Hi there")
		svc := NewService(llm, nil)

		reply, err := svc.Chat(ctx, userRequest("hello"))
		require.NoError(t, err)
		assert.Equal(t, "Hi there", reply.Content)
		assert.Empty(t, reply.Context)

		messages := llm.GetLastMessages()
		require.Len(t, messages, 2)
		assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
		system, err := ContextPrompt(nil)
		require.NoError(t, err)
		assert.Equal(t, llms.TextParts(llms.ChatMessageTypeSystem, system), messages[0])
		assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
		assert.Equal(t, DefaultMaxCompletionTokens, llm.GetLastOptions().MaxTokens)
	})

	t.Run("should honour max completion tokens", func(t *testing.T) {
		llm := testutil.NewFakeLLM("ok")
		svc := NewService(llm, nil)

		req := userRequest("hello")
		req.MaxCompletionTokens = 42
		_, err := svc.Chat(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 42, llm.GetLastOptions().MaxTokens)
	})

	t.Run("should remember exchanges and use them as context", func(t *testing.T) {
		llm := testutil.NewFakeLLM("Noted, blue it is.", "You like blue.")
		mem, err := NewMemory(hashEmbedder{}, "chat_memory", 3)
		require.NoError(t, err)
		svc := NewService(llm, mem)

		_, err = svc.Chat(ctx, userRequest("my favourite colour is blue"))
		require.NoError(t, err)
		assert.Equal(t, 2, mem.Count())

		reply, err := svc.Chat(ctx, userRequest("what is my favourite colour"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"my favourite colour is blue", "Noted, blue it is."}, reply.Context)
		assert.Contains(t, llm.GetLastPrompt(), "- my favourite colour is blue")
		assert.Equal(t, 4, mem.Count())
	})

	t.Run("should reject requests without messages", func(t *testing.T) {
		svc := NewService(testutil.NewFakeLLM("unused"), nil)
		_, err := svc.Chat(ctx, chat.ChatRequest{})
		assert.ErrorIs(t, err, ErrNoMessages)
	})

	t.Run("should wrap model failures", func(t *testing.T) {
		llm := testutil.NewFakeLLM("unused")
		llm.SetErrorOnCall(1, "model offline")
		svc := NewService(llm, nil)

		_, err := svc.Chat(ctx, userRequest("hello"))
		assert.ErrorContains(t, err, "chat completion failed: model offline")
	})
}

func TestServiceChatDiff(t *testing.T) {
	ctx := context.Background()
	canvas := config.DefaultCanvasText
	rewritten := "function helloWorld() {\n  console.log('Hello, canvas!');\n}"

	t.Run("should ask for code with the code prompt", func(t *testing.T) {
		llm := testutil.NewFakeLLM(rewritten)
		svc := NewService(llm, nil)

		code, err := svc.SuggestCode(ctx, "greet the canvas", canvas)
		require.NoError(t, err)
		assert.Equal(t, rewritten, code)
		prompt, err := CodePrompt("greet the canvas", canvas)
		require.NoError(t, err)
		assert.Equal(t, prompt, llm.GetLastPrompt())
		assert.Equal(t, CodeSuggestionMaxTokens, llm.GetLastOptions().MaxTokens)
	})

	t.Run("should produce a diff that applies to the canvas", func(t *testing.T) {
		llm := testutil.NewFakeLLM("```javascript\n"+rewritten+"\n```", "I changed the greeting.")
		svc := NewService(llm, nil)

		req := userRequest("greet the canvas")
		req.CanvasCode = canvas
		req.AICanEditCanvas = true

		reply, err := svc.ChatDiff(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "I changed the greeting.", reply.Content)
		assert.Contains(t, reply.Diff, "--- original")
		assert.Contains(t, reply.Diff, "+++ new")
		assert.Contains(t, reply.Diff, "+  console.log('Hello, canvas!');")

		result := diff.Apply(canvas, reply.Diff)
		require.True(t, result.IsApplied(), result.Reason)
		assert.Equal(t, rewritten, result.Text)
	})

	t.Run("should return an empty diff when nothing changes", func(t *testing.T) {
		llm := testutil.NewFakeLLM(canvas+"\n", "Nothing to change.")
		svc := NewService(llm, nil)

		req := userRequest("leave it")
		req.CanvasCode = canvas

		reply, err := svc.ChatDiff(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, reply.Diff)
	})
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain code", "a\nb", "a\nb"},
		{"fenced with language", "```go\nfunc main() {}\n```", "func main() {}"},
		{"fenced without language", "```\nx := 1\n```\n", "x := 1"},
		{"single backtick line", "```", "```"},
		{"inline fence", "```x```", "```x```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.in))
		})
	}
}

func TestMatchTrailingNewline(t *testing.T) {
	assert.Equal(t, "a", matchTrailingNewline("a\n\n", "x"))
	assert.Equal(t, "a\n", matchTrailingNewline("a", "x\n"))
}

func TestPrompts(t *testing.T) {
	t.Run("should list memory context", func(t *testing.T) {
		text, err := ContextPrompt([]string{"likes Go", "uses vim"})
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(text, "Context:\n- likes Go\n- uses vim"))
	})

	t.Run("should keep an empty context marker", func(t *testing.T) {
		text, err := ContextPrompt(nil)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(text, "Context:\n- "))
	})

	t.Run("should embed code and request verbatim", func(t *testing.T) {
		text, err := CodePrompt("rename {{.x}}", "a < b && {{c}}")
		require.NoError(t, err)
		assert.Contains(t, text, "--- CODE ---\na < b && {{c}}\n--- END CODE ---")
		assert.Contains(t, text, "--- REQUEST ---\nrename {{.x}}\n--- END REQUEST ---")
	})
}
