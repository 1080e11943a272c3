package perception

import (
	"context"
	"fmt"

	"intentgate/internal/config"
)

// NewClientFromConfig builds the Tier-3 model client. It returns (nil, nil)
// when the provider is "none", which disables Tier-3.
func NewClientFromConfig(ctx context.Context, cfg config.LLMConfig) (LLMClient, error) {
	var client LLMClient
	switch Provider(cfg.Provider) {
	case ProviderNone, "":
		return nil, nil
	case ProviderOllama:
		oc := DefaultOllamaConfig()
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		client = NewOllamaClient(oc)
	case ProviderGemini:
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.Model != "" && cfg.Model != config.DefaultConfig().LLM.Model {
			gc.Model = cfg.Model
		}
		gemini, err := NewGeminiClient(ctx, gc)
		if err != nil {
			return nil, err
		}
		client = gemini
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	return NewTracingLLMClient(client), nil
}
