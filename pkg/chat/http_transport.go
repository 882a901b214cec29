package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/killallgit/canvaschat/pkg/logger"
)

const (
	ChatPath     = "/chat"
	ChatDiffPath = "/chat/diff"
	HealthPath   = "/health"
)

// HTTPTransport streams replies from the chat backend API.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	readSize   int
}

// NewHTTPTransport creates a transport for the backend at baseURL
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return NewHTTPTransportWithTimeout(baseURL, 90*time.Second)
}

// NewHTTPTransportWithTimeout creates a transport with a custom timeout
func NewHTTPTransportWithTimeout(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		readSize:   4096,
	}
}

// Endpoint returns the URL a request is sent to: the diff endpoint when the
// request carries canvas text, the plain chat endpoint otherwise.
func (t *HTTPTransport) Endpoint(req ChatRequest) string {
	if req.HasCanvas() {
		return t.baseURL + ChatDiffPath
	}
	return t.baseURL + ChatPath
}

// Open implements Transport
func (t *HTTPTransport) Open(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	log := logger.WithComponent("http_transport")

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := t.Endpoint(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug("Opening stream", "url", url, "messages", len(req.Messages), "canvas", req.HasCanvas())

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newTransportError(resp)
	}

	chunks := make(chan StreamChunk, 100)
	if isJSON(resp.Header.Get("Content-Type")) {
		go t.readJSON(ctx, resp.Body, chunks)
	} else {
		go t.readStream(ctx, resp.Body, chunks)
	}
	return chunks, nil
}

// Health probes the backend health endpoint
func (t *HTTPTransport) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+HealthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newTransportError(resp)
	}
	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if status.Status != "ok" {
		return fmt.Errorf("backend reported status %q", status.Status)
	}
	return nil
}

// readStream forwards the body as text chunks in arrival order
func (t *HTTPTransport) readStream(ctx context.Context, body io.ReadCloser, chunks chan<- StreamChunk) {
	defer close(chunks)
	defer body.Close()

	var dec utf8Decoder
	buf := make([]byte, t.readSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if text := dec.Decode(buf[:n]); text != "" {
				if !send(ctx, chunks, StreamChunk{Content: text}) {
					return
				}
			}
		}
		if errors.Is(err, io.EOF) {
			if rest := dec.Flush(); rest != "" {
				send(ctx, chunks, StreamChunk{Content: rest})
			}
			return
		}
		if err != nil {
			send(ctx, chunks, StreamChunk{Err: fmt.Errorf("failed to read stream: %w", err)})
			return
		}
	}
}

// readJSON handles a non-streaming chat reply
func (t *HTTPTransport) readJSON(ctx context.Context, body io.ReadCloser, chunks chan<- StreamChunk) {
	defer close(chunks)
	defer body.Close()

	var chatResp ChatResponse
	if err := json.NewDecoder(body).Decode(&chatResp); err != nil {
		send(ctx, chunks, StreamChunk{Err: fmt.Errorf("failed to decode response: %w", err)})
		return
	}
	if chatResp.Content != "" {
		send(ctx, chunks, StreamChunk{Content: chatResp.Content})
	}
}

// send delivers a chunk unless the consumer has gone away
func send(ctx context.Context, chunks chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func newTransportError(resp *http.Response) error {
	errorBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Detail: fmt.Sprintf("failed to read error response: %v", err)}
	}

	terr := &TransportError{StatusCode: resp.StatusCode, Body: string(errorBody)}

	// The chat backend reports {"detail": ...}; other servers use {"error": ...}
	var errorResp struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(errorBody, &errorResp) == nil {
		terr.Detail = errorResp.Detail
		if terr.Detail == "" {
			terr.Detail = errorResp.Error
		}
	}
	return terr
}
