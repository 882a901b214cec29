package chat

import (
	"fmt"

	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewModel creates the LangChain model for the configured provider
func NewModel(cfg config.ProviderConfig) (llms.Model, error) {
	switch cfg.Name {
	case config.ProviderOpenAI:
		var opts []openai.Option
		if cfg.OpenAI.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.OpenAI.APIKey))
		}
		if cfg.OpenAI.Model != "" {
			opts = append(opts, openai.WithModel(cfg.OpenAI.Model))
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create LangChain OpenAI client: %w", err)
		}
		return llm, nil
	case config.ProviderOllama, "":
		var opts []ollama.Option
		if cfg.Ollama.URL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.Ollama.URL))
		}
		if cfg.Ollama.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Ollama.Model))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create LangChain Ollama client: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// NewTransport creates the transport selected by transport.mode
func NewTransport(cfg *config.Config) (Transport, error) {
	switch cfg.Transport.Mode {
	case config.TransportLangChain:
		llm, err := NewModel(cfg.Provider)
		if err != nil {
			return nil, err
		}
		return NewLangChainTransport(llm, cfg.GetActiveProviderModel()), nil
	case config.TransportHTTP, "":
		return NewHTTPTransportWithTimeout(cfg.Transport.BaseURL, cfg.Transport.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown transport mode %q", cfg.Transport.Mode)
	}
}
