package provider

import (
	"context"
	"errors"

	"github.com/pmajor/intake/config"
	openai_provider "github.com/pmajor/intake/provider/openai"
)

// Provider is the completion-service capability the clarification and
// generation components depend on. Implementations must be safe for
// concurrent use.
type Provider interface {
	Complete(ctx context.Context, system string, user string) (string, error)
}

// NewProvider builds a completion provider from configuration. A missing API
// key is not an error: it returns (nil, nil) and every consumer degrades to
// its no-provider behaviour.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "openai", "":
		return openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, errors.New("unsupported LLM provider: " + cfg.Provider)
	}
}
