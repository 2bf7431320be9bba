package chatgpt

import (
	"net/http"
	"time"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider answers queries through the OpenAI Responses API with web search enabled
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	country string
	http    *http.Client
}

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.http = hc
	}
}

// WithCountry overrides the search locale hint.
func WithCountry(country string) Option {
	return func(p *Provider) {
		p.country = common.MapCountryCode(country)
	}
}

// NewProvider creates a new ChatGPT provider
func NewProvider(cfg config.OpenAIConfig, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		country: common.DefaultCountry,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	if p.model == "" {
		p.model = "gpt-4o"
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string {
	return "chatgpt"
}

func (p *Provider) Model() string {
	return p.model
}
