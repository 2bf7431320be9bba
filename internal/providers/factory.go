package providers

import (
	"context"

	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/chatgpt"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/claude"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/gemini"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/perplexity"
)

// Factory builds a provider for an ID
type Factory func(ctx context.Context, id ID) (Provider, error)

// NewFactory returns a Factory backed by the service configuration
func NewFactory(cfg *config.Config) Factory {
	return func(ctx context.Context, id ID) (Provider, error) {
		return NewProvider(ctx, id, cfg)
	}
}

// NewProvider creates the adapter for id
func NewProvider(ctx context.Context, id ID, cfg *config.Config) (Provider, error) {
	var p Provider
	switch id {
	case ChatGPT:
		p = chatgpt.NewProvider(cfg.OpenAI)
	case Perplexity:
		p = perplexity.NewProvider(cfg.Perplexity)
	case Claude:
		p = claude.NewProvider(cfg.Anthropic)
	case Gemini:
		g, err := gemini.NewProvider(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		p = g
	default:
		return nil, &UnsupportedProviderError{ID: string(id)}
	}

	zap.L().Debug("selected provider", zap.String("provider", p.Name()), zap.String("model", p.Model()))
	return p, nil
}
