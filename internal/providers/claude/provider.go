package claude

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
)

const (
	defaultModel      = "claude-sonnet-4-20250514"
	maxTokens         = 2000
	maxWebSearchUses  = 5
	citationTypeWebSR = "web_search_result_location"
)

// Provider answers queries with the Messages API and the server-side web search tool
type Provider struct {
	client  *anthropic.Client
	model   string
	country string
}

// NewProvider creates a Claude provider. opts are passed to the SDK client.
func NewProvider(cfg config.AnthropicConfig, opts ...option.RequestOption) *Provider {
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(clientOpts...)

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Provider{
		client:  &client,
		model:   model,
		country: common.DefaultCountry,
	}
}

func (p *Provider) Name() string {
	return "claude"
}

func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) Ask(ctx context.Context, query string) (*common.Answer, error) {
	response, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
				MaxUses: anthropic.Int(maxWebSearchUses),
				UserLocation: anthropic.WebSearchTool20250305UserLocationParam{
					Country: anthropic.String(p.country),
				},
			},
		}},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(eris.Wrap(err, "claude: create message"), apiErr.StatusCode)
		}
		return nil, eris.Wrap(err, "claude: create message")
	}

	text, urls := extractResponse(response)
	return &common.Answer{
		Text:         text,
		Sources:      common.ExtractBaseDomains(urls),
		InputTokens:  int(response.Usage.InputTokens),
		OutputTokens: int(response.Usage.OutputTokens),
	}, nil
}

// extractResponse joins text blocks and collects web search citation URLs in order
func extractResponse(response *anthropic.Message) (string, []string) {
	var textParts []string
	var urls []string

	for _, block := range response.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			textParts = append(textParts, variant.Text)
			for _, citation := range variant.Citations {
				if citation.Type == citationTypeWebSR && citation.URL != "" {
					urls = append(urls, citation.URL)
				}
			}
		}
	}

	return strings.Join(textParts, ""), urls
}
