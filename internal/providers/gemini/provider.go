package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
)

const defaultModel = "gemini-2.5-flash"

// Provider answers queries with Gemini and Google Search grounding.
//
// Grounding chunks only expose a redirect URI, so the chunk title is used as
// the source. Titles are usually the publisher domain but not always.
type Provider struct {
	client  *genai.Client
	model   string
	country string
}

// Option configures the underlying genai client.
type Option func(*genai.ClientConfig)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPClient = hc
	}
}

// NewProvider creates a Gemini provider
func NewProvider(ctx context.Context, cfg config.GeminiConfig, opts ...Option) (*Provider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		o(clientCfg)
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Provider{client: client, model: model, country: common.DefaultCountry}, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) Ask(ctx context.Context, query string) (*common.Answer, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(query), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			fmt.Sprintf("The user is located in country %s. Prefer results relevant to that country.", p.country),
			genai.RoleUser,
		),
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.Code) {
			return nil, resilience.NewTransientError(eris.Wrap(err, "gemini: generate content"), apiErr.Code)
		}
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	answer := &common.Answer{
		Text:    resp.Text(),
		Sources: common.PassThroughTitles(groundingTitles(resp)),
	}
	if resp.UsageMetadata != nil {
		answer.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		answer.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return answer, nil
}

func groundingTitles(resp *genai.GenerateContentResponse) []string {
	var titles []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk != nil && chunk.Web != nil {
				titles = append(titles, chunk.Web.Title)
			}
		}
	}
	return titles
}
