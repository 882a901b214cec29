// Package backend is the LLM-facing chat API the canvas front-end talks to:
// plain chat with memory at /chat and canvas rewrites expressed as unified
// diffs at /chat/diff.
package backend

import (
	"fmt"
	"net/http"
	"time"

	"github.com/killallgit/canvaschat/pkg/chat"
	"github.com/killallgit/canvaschat/pkg/config"
)

// NewServiceFromConfig creates the service for the configured provider,
// with chat memory when memory.enabled is set
func NewServiceFromConfig(cfg *config.Config) (*Service, error) {
	llm, err := chat.NewModel(cfg.Provider)
	if err != nil {
		return nil, err
	}

	var memory *Memory
	if cfg.Memory.Enabled {
		embedder, err := NewEmbedder(cfg.Memory.Embedder, cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		memory, err = NewMemory(embedder, cfg.Memory.Collection, cfg.Memory.Results)
		if err != nil {
			return nil, err
		}
	}

	return NewService(llm, memory), nil
}

// NewServer returns an http.Server for the backend API
func NewServer(cfg *config.Config) (*http.Server, error) {
	svc, err := NewServiceFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              cfg.Backend.Addr,
		Handler:           NewRouter(svc, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}, nil
}
