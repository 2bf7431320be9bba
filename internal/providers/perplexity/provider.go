package perplexity

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
)

// Provider answers queries with Perplexity's search-augmented chat completions
type Provider struct {
	client  Client
	model   string
	country string
}

// NewProvider creates a Perplexity provider. Extra options are passed to the HTTP client.
func NewProvider(cfg config.PerplexityConfig, opts ...Option) *Provider {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	clientOpts := []Option{WithModel(model)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, WithBaseURL(cfg.BaseURL))
	}
	return NewProviderWithClient(NewClient(cfg.APIKey, append(clientOpts, opts...)...), model)
}

// NewProviderWithClient wraps an existing client
func NewProviderWithClient(client Client, model string) *Provider {
	return &Provider{client: client, model: model, country: common.DefaultCountry}
}

func (p *Provider) Name() string {
	return "perplexity"
}

func (p *Provider) Model() string {
	return p.model
}

// Ask sends one user message; citations come back as a flat URL list.
func (p *Provider) Ask(ctx context.Context, query string) (*common.Answer, error) {
	resp, err := p.client.ChatCompletion(ctx, ChatCompletionRequest{
		Model:    p.model,
		Messages: []Message{{Role: "user", Content: query}},
		WebSearchOptions: &WebSearchOptions{
			UserLocation: UserLocation{Country: p.country},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("perplexity: no choices returned")
	}

	return &common.Answer{
		Text:         resp.Choices[0].Message.Content,
		Sources:      common.ExtractBaseDomains(resp.Citations),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
