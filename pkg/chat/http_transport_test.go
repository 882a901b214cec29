package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, chunks <-chan StreamChunk) (string, error) {
	t.Helper()
	var b strings.Builder
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return b.String(), nil
			}
			if chunk.Err != nil {
				return b.String(), chunk.Err
			}
			b.WriteString(chunk.Content)
		case <-timeout:
			t.Fatal("timed out waiting for stream")
		}
	}
}

func TestNewChatRequest(t *testing.T) {
	history := []Message{
		NewSystemMessage("be brief"),
		NewUserMessage("Hi"),
		NewAssistantMessage(""),
		NewAssistantMessage("Hello"),
		NewUserMessage("Rename the function"),
	}

	t.Run("should drop empty messages and keep order", func(t *testing.T) {
		req := NewChatRequest(history, "", false, 150)

		require.Len(t, req.Messages, 4)
		assert.Equal(t, RequestMessage{Role: RoleSystem, Content: "be brief"}, req.Messages[0])
		assert.Equal(t, "Rename the function", req.LastUserContent())
		assert.False(t, req.HasCanvas())
		assert.False(t, req.AICanEditCanvas)
		assert.Equal(t, 150, req.MaxCompletionTokens)
	})

	t.Run("should only grant edits when there is a canvas", func(t *testing.T) {
		assert.True(t, NewChatRequest(history, "code", true, 0).AICanEditCanvas)
		assert.False(t, NewChatRequest(history, "code", false, 0).AICanEditCanvas)
		assert.False(t, NewChatRequest(history, "", true, 0).AICanEditCanvas)
	})

	t.Run("should encode the backend wire format", func(t *testing.T) {
		body, err := json.Marshal(NewChatRequest(history[:2], "x = 1", true, 0))
		require.NoError(t, err)

		assert.JSONEq(t, `{
			"messages": [{"role":"system","content":"be brief"},{"role":"user","content":"Hi"}],
			"canvas_code": "x = 1",
			"ai_can_edit_canvas": true
		}`, string(body))
	})
}

func TestHTTPTransport(t *testing.T) {
	t.Run("should pick the endpoint from the canvas", func(t *testing.T) {
		transport := NewHTTPTransport("http://backend:8000/")

		assert.Equal(t, "http://backend:8000/chat", transport.Endpoint(ChatRequest{}))
		assert.Equal(t, "http://backend:8000/chat/diff", transport.Endpoint(ChatRequest{CanvasCode: "x"}))
	})

	t.Run("should stream a text body in order", func(t *testing.T) {
		var gotPath string
		var gotReq ChatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			flusher := w.(http.Flusher)
			for _, part := range []string{"--- DIFF ---\n", "+line\n", "--- END DIFF ---\n", "Done."} {
				io.WriteString(w, part)
				flusher.Flush()
			}
		}))
		defer server.Close()

		transport := NewHTTPTransport(server.URL)
		req := ChatRequest{Messages: []RequestMessage{{Role: RoleUser, Content: "edit"}}, CanvasCode: "a", AICanEditCanvas: true}
		chunks, err := transport.Open(context.Background(), req)
		require.NoError(t, err)

		text, err := collect(t, chunks)
		require.NoError(t, err)
		assert.Equal(t, "--- DIFF ---\n+line\n--- END DIFF ---\nDone.", text)
		assert.Equal(t, ChatDiffPath, gotPath)
		assert.Equal(t, req, gotReq)
	})

	t.Run("should read a JSON chat response as one chunk", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(ChatResponse{Role: RoleAssistant, Content: "Hello there", Context: []string{"earlier"}})
		}))
		defer server.Close()

		chunks, err := NewHTTPTransport(server.URL).Open(context.Background(), ChatRequest{})
		require.NoError(t, err)

		text, err := collect(t, chunks)
		require.NoError(t, err)
		assert.Equal(t, "Hello there", text)
	})

	t.Run("should return a TransportError for non-2xx replies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"detail":"An error occurred during the chat process."}`)
		}))
		defer server.Close()

		_, err := NewHTTPTransport(server.URL).Open(context.Background(), ChatRequest{})
		require.Error(t, err)

		var terr *TransportError
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, http.StatusInternalServerError, terr.StatusCode)
		assert.Equal(t, "An error occurred during the chat process.", terr.Detail)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("should fall back to the raw body in errors", func(t *testing.T) {
		err := (&TransportError{StatusCode: 502, Body: "bad gateway\n"}).Error()
		assert.Equal(t, "request failed with status 502: bad gateway", err)
	})

	t.Run("should not split runes across chunks", func(t *testing.T) {
		text := "héllo wörld ✓ 🎉"
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			for i := 0; i < len(text); i++ {
				w.Write([]byte{text[i]})
				flusher.Flush()
			}
		}))
		defer server.Close()

		transport := NewHTTPTransport(server.URL)
		transport.readSize = 1
		chunks, err := transport.Open(context.Background(), ChatRequest{})
		require.NoError(t, err)

		var parts []string
		for chunk := range chunks {
			require.NoError(t, chunk.Err)
			parts = append(parts, chunk.Content)
		}
		assert.Equal(t, text, strings.Join(parts, ""))
		for _, p := range parts {
			assert.True(t, utf8.ValidString(p), "chunk %q is not valid UTF-8", p)
		}
	})

	t.Run("should report health", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, HealthPath, r.URL.Path)
			io.WriteString(w, `{"status":"ok"}`)
		}))
		defer server.Close()

		assert.NoError(t, NewHTTPTransport(server.URL).Health(context.Background()))
	})

	t.Run("should fail health when the backend is down", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		assert.Error(t, NewHTTPTransport(server.URL).Health(context.Background()))
	})
}

func TestUTF8Decoder(t *testing.T) {
	var dec utf8Decoder
	euro := []byte("€") // three bytes

	assert.Equal(t, "a", dec.Decode([]byte{'a', euro[0]}))
	assert.Equal(t, "", dec.Decode(euro[1:2]))
	assert.Equal(t, "€b", dec.Decode([]byte{euro[2], 'b'}))
	assert.Equal(t, "", dec.Flush())

	dec.Decode([]byte{euro[0]})
	assert.Equal(t, string(euro[:1]), dec.Flush())
}
