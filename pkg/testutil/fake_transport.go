package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/killallgit/canvaschat/pkg/chat"
)

// FakeTransport implements chat.Transport for testing. Each Open consumes
// the next queued script; with none queued it streams the next configured
// response in chunks of chunkSize bytes.
type FakeTransport struct {
	mu           sync.Mutex
	responses    []string
	currentIndex int
	scripts      []script
	requests     []chat.ChatRequest
	chunkDelay   time.Duration // Delay between chunks
	chunkSize    int           // Bytes per chunk
	failAfter    int           // Fail after N chunks (0 = no failure)
	errorMessage string        // Custom error message
}

type script struct {
	chunks  []string
	err     error
	openErr error
	manual  chan chat.StreamChunk
}

// NewFakeTransport creates a fake transport cycling through responses
func NewFakeTransport(responses ...string) *FakeTransport {
	return &FakeTransport{
		responses: responses,
		chunkSize: 5,
	}
}

// Open implements chat.Transport
func (t *FakeTransport) Open(ctx context.Context, req chat.ChatRequest) (<-chan chat.StreamChunk, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)

	var s script
	if len(t.scripts) > 0 {
		s = t.scripts[0]
		t.scripts = t.scripts[1:]
	} else if len(t.responses) > 0 {
		s.chunks = splitChunks(t.responses[t.currentIndex], t.chunkSize)
		t.currentIndex = (t.currentIndex + 1) % len(t.responses)
	}
	delay, failAfter, errMsg := t.chunkDelay, t.failAfter, t.errorMessage
	t.mu.Unlock()

	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.manual != nil {
		return s.manual, nil
	}

	chunks := make(chan chat.StreamChunk, 100)
	go func() {
		defer close(chunks)

		for i, content := range s.chunks {
			if failAfter > 0 && i >= failAfter {
				if errMsg == "" {
					errMsg = "simulated streaming error"
				}
				send(ctx, chunks, chat.StreamChunk{Err: errors.New(errMsg)})
				return
			}

			// Simulate processing delay
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}

			if !send(ctx, chunks, chat.StreamChunk{Content: content}) {
				return
			}
		}

		if s.err != nil {
			send(ctx, chunks, chat.StreamChunk{Err: s.err})
		}
	}()

	return chunks, nil
}

func send(ctx context.Context, ch chan<- chat.StreamChunk, chunk chat.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func splitChunks(response string, size int) []string {
	if size <= 0 || len(response) <= size {
		if response == "" {
			return nil
		}
		return []string{response}
	}
	var chunks []string
	for i := 0; i < len(response); i += size {
		chunks = append(chunks, response[i:min(i+size, len(response))])
	}
	return chunks
}

// QueueChunks scripts the next Open to stream exactly chunks and end
func (t *FakeTransport) QueueChunks(chunks ...string) {
	t.queue(script{chunks: chunks})
}

// QueueFailure scripts the next Open to stream chunks and then fail with err
func (t *FakeTransport) QueueFailure(err error, chunks ...string) {
	t.queue(script{chunks: chunks, err: err})
}

// QueueOpenError scripts the next Open to fail before streaming
func (t *FakeTransport) QueueOpenError(err error) {
	t.queue(script{openErr: err})
}

// QueueManual scripts the next Open to return a channel driven by the
// caller. The caller must close it to end the stream.
func (t *FakeTransport) QueueManual() chan<- chat.StreamChunk {
	ch := make(chan chat.StreamChunk, 100)
	t.queue(script{manual: ch})
	return ch
}

func (t *FakeTransport) queue(s script) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scripts = append(t.scripts, s)
}

// SetChunkDelay sets the delay between chunks
func (t *FakeTransport) SetChunkDelay(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkDelay = delay
}

// SetChunkSize sets the number of bytes per chunk for configured responses
func (t *FakeTransport) SetChunkSize(size int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkSize = size
}

// SetFailAfter configures the transport to fail after N chunks
func (t *FakeTransport) SetFailAfter(chunks int, errorMessage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failAfter = chunks
	t.errorMessage = errorMessage
}

// Requests returns every request passed to Open
func (t *FakeTransport) Requests() []chat.ChatRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]chat.ChatRequest, len(t.requests))
	copy(result, t.requests)
	return result
}

// LastRequest returns the most recent request
func (t *FakeTransport) LastRequest() (chat.ChatRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return chat.ChatRequest{}, false
	}
	return t.requests[len(t.requests)-1], true
}

// CallCount returns the number of Open calls
func (t *FakeTransport) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

var _ chat.Transport = (*FakeTransport)(nil)
