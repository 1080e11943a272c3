package perception

import (
	"context"
	"time"
)

// LLMClient is a model that can answer under a JSON schema.
type LLMClient interface {
	// CompleteWithSchema returns the raw model text. Providers that support
	// constrained decoding enforce schema; the caller validates regardless.
	CompleteWithSchema(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error)
	Model() string
}

// Provider represents an LLM provider.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
	ProviderNone   Provider = "none"
)

// OllamaConfig holds configuration for the local Ollama client.
type OllamaConfig struct {
	BaseURL string
	Model   string
	// Timeout caps the HTTP exchange. The per-call deadline from the context
	// is normally much shorter.
	Timeout time.Duration
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// DefaultOllamaConfig returns config for a local Ollama daemon.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: "http://localhost:11434",
		Model:   "qwen2.5:3b-instruct",
		Timeout: 30 * time.Second,
	}
}

// DefaultGeminiConfig returns config for Gemini.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey: apiKey,
		Model:  "gemini-2.5-flash",
	}
}
