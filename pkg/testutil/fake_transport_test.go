package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan chat.StreamChunk) ([]string, error) {
	var contents []string
	for chunk := range ch {
		if chunk.Err != nil {
			return contents, chunk.Err
		}
		contents = append(contents, chunk.Content)
	}
	return contents, nil
}

func TestFakeTransport(t *testing.T) {
	ctx := context.Background()
	req := chat.ChatRequest{Messages: []chat.RequestMessage{{Role: chat.RoleUser, Content: "Hi"}}}

	t.Run("should stream response in chunks", func(t *testing.T) {
		transport := NewFakeTransport("Hello world!")
		transport.SetChunkSize(3)

		ch, err := transport.Open(ctx, req)
		require.NoError(t, err)

		chunks, err := collect(ch)
		require.NoError(t, err)
		assert.Equal(t, []string{"Hel", "lo ", "wor", "ld!"}, chunks)
	})

	t.Run("should record requests", func(t *testing.T) {
		transport := NewFakeTransport("ok")

		_, ok := transport.LastRequest()
		assert.False(t, ok)

		ch, err := transport.Open(ctx, req)
		require.NoError(t, err)
		_, _ = collect(ch)

		assert.Equal(t, 1, transport.CallCount())
		last, ok := transport.LastRequest()
		require.True(t, ok)
		assert.Equal(t, "Hi", last.LastUserContent())
		assert.Len(t, transport.Requests(), 1)
	})

	t.Run("should play queued scripts before responses", func(t *testing.T) {
		transport := NewFakeTransport("fallback")
		transport.QueueChunks("a", "b")

		ch, err := transport.Open(ctx, req)
		require.NoError(t, err)
		chunks, err := collect(ch)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, chunks)

		ch, err = transport.Open(ctx, req)
		require.NoError(t, err)
		chunks, err = collect(ch)
		require.NoError(t, err)
		assert.Equal(t, []string{"fallb", "ack"}, chunks)
	})

	t.Run("should fail after chunks", func(t *testing.T) {
		transport := NewFakeTransport("abcdefghij")
		transport.SetChunkSize(2)
		transport.SetFailAfter(2, "connection reset")

		ch, err := transport.Open(ctx, req)
		require.NoError(t, err)

		chunks, err := collect(ch)
		assert.EqualError(t, err, "connection reset")
		assert.Equal(t, []string{"ab", "cd"}, chunks)
	})

	t.Run("should return queued failures", func(t *testing.T) {
		transport := NewFakeTransport()
		boom := errors.New("boom")
		transport.QueueOpenError(boom)
		transport.QueueFailure(boom, "partial")

		_, err := transport.Open(ctx, req)
		assert.ErrorIs(t, err, boom)

		ch, err := transport.Open(ctx, req)
		require.NoError(t, err)
		chunks, err := collect(ch)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"partial"}, chunks)
	})

	t.Run("should hand out manual channels", func(t *testing.T) {
		transport := NewFakeTransport()
		manual := transport.QueueManual()

		ch, err := transport.Open(ctx, req)
		require.NoError(t, err)

		manual <- chat.StreamChunk{Content: "x"}
		close(manual)

		chunks, err := collect(ch)
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, chunks)
	})

	t.Run("should support cancellation", func(t *testing.T) {
		transport := NewFakeTransport("This is a long message that will be cancelled")
		transport.SetChunkSize(2)
		transport.SetChunkDelay(20 * time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := transport.Open(ctx, req)
		require.NoError(t, err)

		var count int
		for range ch {
			count++
			if count == 1 {
				cancel()
			}
		}
		assert.Less(t, count, 5)
	})
}
