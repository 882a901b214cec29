package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// MaxTextLength is the maximum length of text that can be embedded
const MaxTextLength = 8192

// Embedder turns text into a vector for the memory collection
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// LangChainEmbedder wraps a LangChain embedder
type LangChainEmbedder struct {
	embedder embeddings.Embedder
	provider string
}

// NewEmbedder creates the embedder named by memory.embedder, reusing the
// provider connection settings
func NewEmbedder(mem config.MemoryEmbedderConfig, provider config.ProviderConfig) (*LangChainEmbedder, error) {
	switch mem.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(provider.OpenAI.APIKey, mem.Model, provider.OpenAI.BaseURL)
	case config.ProviderOllama, "":
		return NewOllamaEmbedder(mem.Model, provider.Ollama.URL)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", mem.Provider)
	}
}

// NewOllamaEmbedder creates an embedder using Ollama
func NewOllamaEmbedder(model, baseURL string) (*LangChainEmbedder, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama LLM: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &LangChainEmbedder{embedder: embedder, provider: config.ProviderOllama}, nil
}

// NewOpenAIEmbedder creates an embedder using OpenAI
func NewOpenAIEmbedder(apiKey, model, baseURL string) (*LangChainEmbedder, error) {
	var opts []openai.Option
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	if model != "" {
		opts = append(opts, openai.WithEmbeddingModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI LLM: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &LangChainEmbedder{embedder: embedder, provider: config.ProviderOpenAI}, nil
}

// EmbedText generates an embedding for a single text
func (le *LangChainEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("empty text")
	}
	if len(text) > MaxTextLength {
		text = text[:MaxTextLength]
	}

	vectors, err := le.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%s embedding failed: %w", le.provider, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%s embedding failed: no embeddings returned", le.provider)
	}
	return vectors[0], nil
}
