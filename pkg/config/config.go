package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Logging      LoggingConfig   `mapstructure:"logging"`
	Transport    TransportConfig `mapstructure:"transport"`
	Provider     ProviderConfig  `mapstructure:"provider"`
	Server       ServerConfig    `mapstructure:"server"`
	Backend      BackendConfig   `mapstructure:"backend"`
	Memory       MemoryConfig    `mapstructure:"memory"`
	Canvas       CanvasConfig    `mapstructure:"canvas"`
	SystemPrompt string          `mapstructure:"system_prompt"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	LogFile  string `mapstructure:"log_file"`
	Preserve bool   `mapstructure:"preserve"`
	Level    string `mapstructure:"level"`
}

// TransportConfig selects how the controller reaches the model.
//
// Mode "http" talks to the chat backend API, mode "langchain" streams
// directly from the configured provider.
type TransportConfig struct {
	Mode                string        `mapstructure:"mode"`
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"-"`
	TimeoutStr          string        `mapstructure:"timeout"` // For parsing string duration
	MaxCompletionTokens int           `mapstructure:"max_completion_tokens"`
}

// ProviderConfig holds the LLM provider settings
type ProviderConfig struct {
	Name   string       `mapstructure:"name"` // ollama or openai
	Ollama OllamaConfig `mapstructure:"ollama"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OllamaConfig holds Ollama-specific configuration
type OllamaConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"` // For Azure or custom endpoints
}

// ServerConfig holds the front-end API server settings
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// BackendConfig holds the chat backend API settings
type BackendConfig struct {
	Addr string `mapstructure:"addr"`
}

// MemoryConfig holds chat memory configuration
type MemoryConfig struct {
	Enabled    bool                 `mapstructure:"enabled"`
	Collection string               `mapstructure:"collection"`
	Results    int                  `mapstructure:"results"`
	Embedder   MemoryEmbedderConfig `mapstructure:"embedder"`
}

// MemoryEmbedderConfig holds embedder configuration
type MemoryEmbedderConfig struct {
	Provider string `mapstructure:"provider"` // ollama, openai
	Model    string `mapstructure:"model"`
}

// CanvasConfig holds canvas editing behaviour
type CanvasConfig struct {
	AllowEdits     bool   `mapstructure:"allow_edits"`
	AllowOffset    bool   `mapstructure:"allow_offset"`
	EmbedUserEdits bool   `mapstructure:"embed_user_edits"`
	InitialText    string `mapstructure:"initial_text"`
}

const (
	TransportHTTP      = "http"
	TransportLangChain = "langchain"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// DefaultSystemPrompt is the assistant persona used by the original chat backend.
const DefaultSystemPrompt = "You are a helpful assistant. Provide clear, concise, and accurate answers."

// DefaultCanvasText seeds a new canvas.
const DefaultCanvasText = "function helloWorld() {\n  console.log('Hello, world!');\n}"

var (
	// Global config instance
	cfg *Config
)

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// Load loads configuration from .env, file and environment
func Load(cfgFile string) (*Config, error) {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Set defaults first
	setDefaults()

	// Configure viper
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}

		viper.AddConfigPath("./.canvaschat") // Check project directory first
		viper.AddConfigPath(filepath.Join(xdgConfigHome, ".canvaschat"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
	}

	viper.SetEnvPrefix("CANVASCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvironmentVariables()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Post-process durations (viper doesn't handle time.Duration directly)
	if err := processDurations(loaded); err != nil {
		return nil, fmt.Errorf("failed to process durations: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	cfg = loaded
	return cfg, nil
}

// Set replaces the global config instance. Used by tests and embedders that
// build a Config without viper.
func Set(c *Config) {
	cfg = c
}

// setDefaults sets all default configuration values
func setDefaults() {
	// Logging defaults
	viper.SetDefault("logging.log_file", "./.canvaschat/system.log")
	viper.SetDefault("logging.preserve", false)
	viper.SetDefault("logging.level", "info")

	// Transport defaults
	viper.SetDefault("transport.mode", TransportHTTP)
	viper.SetDefault("transport.base_url", "http://localhost:8000")
	viper.SetDefault("transport.timeout", "90s")
	viper.SetDefault("transport.max_completion_tokens", 150)

	// Provider defaults
	viper.SetDefault("provider.name", ProviderOllama)
	viper.SetDefault("provider.ollama.url", "http://localhost:11434")
	viper.SetDefault("provider.ollama.model", "qwen3:latest")
	viper.SetDefault("provider.openai.api_key", "")
	viper.SetDefault("provider.openai.model", "gpt-4o-mini")
	viper.SetDefault("provider.openai.base_url", "")

	// Server defaults
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	// Backend defaults
	viper.SetDefault("backend.addr", ":8000")

	// Memory defaults
	viper.SetDefault("memory.enabled", true)
	viper.SetDefault("memory.collection", "chat_memory")
	viper.SetDefault("memory.results", 3)
	viper.SetDefault("memory.embedder.provider", ProviderOllama)
	viper.SetDefault("memory.embedder.model", "nomic-embed-text")

	// Canvas defaults
	viper.SetDefault("canvas.allow_edits", false)
	viper.SetDefault("canvas.allow_offset", false)
	viper.SetDefault("canvas.embed_user_edits", true)
	viper.SetDefault("canvas.initial_text", DefaultCanvasText)

	viper.SetDefault("system_prompt", DefaultSystemPrompt)
}

// bindEnvironmentVariables binds environment variables that don't follow the
// CANVASCHAT_<SECTION>_<KEY> convention
func bindEnvironmentVariables() {
	viper.BindEnv("provider.openai.api_key", "CANVASCHAT_PROVIDER_OPENAI_API_KEY", "OPENAI_API_KEY")
	viper.BindEnv("provider.ollama.url", "CANVASCHAT_PROVIDER_OLLAMA_URL", "OLLAMA_HOST")
	viper.BindEnv("logging.level", "CANVASCHAT_LOGGING_LEVEL", "CANVASCHAT_LOG_LEVEL")
	viper.BindEnv("transport.base_url", "CANVASCHAT_TRANSPORT_BASE_URL", "CANVASCHAT_API_URL")
}

// processDurations converts string durations to time.Duration
func processDurations(cfg *Config) error {
	if cfg.Transport.TimeoutStr != "" {
		d, err := time.ParseDuration(cfg.Transport.TimeoutStr)
		if err != nil {
			return fmt.Errorf("invalid transport.timeout: %w", err)
		}
		cfg.Transport.Timeout = d
	} else if cfg.Transport.Timeout == 0 {
		// Use default if not set
		cfg.Transport.Timeout = 90 * time.Second
	}
	return nil
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch c.Transport.Mode {
	case TransportHTTP, TransportLangChain:
	default:
		return fmt.Errorf("invalid transport.mode %q: must be %q or %q", c.Transport.Mode, TransportHTTP, TransportLangChain)
	}
	switch c.Provider.Name {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid provider.name %q: must be %q or %q", c.Provider.Name, ProviderOllama, ProviderOpenAI)
	}
	if c.Memory.Results < 0 {
		return fmt.Errorf("invalid memory.results %d", c.Memory.Results)
	}
	return nil
}

// GetConfigFileUsed returns the path to the config file being used
func GetConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// GetActiveProviderModel returns the model name for the configured provider
func (c *Config) GetActiveProviderModel() string {
	if c.Provider.Name == ProviderOpenAI {
		return c.Provider.OpenAI.Model
	}
	return c.Provider.Ollama.Model
}

// GetActiveProviderURL returns the URL for the configured provider
func (c *Config) GetActiveProviderURL() string {
	if c.Provider.Name == ProviderOpenAI {
		if c.Provider.OpenAI.BaseURL != "" {
			return c.Provider.OpenAI.BaseURL
		}
		return "https://api.openai.com/v1"
	}
	return c.Provider.Ollama.URL
}
