// services/extraction_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
)

const (
	organizationsSystemPrompt = "You are an analyst who restructures AI search answers. Extract organization names exactly as written, in the order the answer presents them."
	sentimentSystemPrompt     = "You are an analyst who scores how favourably an AI search answer portrays each organization it mentions."
)

type extractionService struct {
	client      *openai.Client
	model       string
	retry       resilience.RetryConfig
	costService CostService
}

// ExtractionOption configures the extraction service
type ExtractionOption func(*extractionConfig)

type extractionConfig struct {
	retry      resilience.RetryConfig
	httpClient *http.Client
}

// WithRetryConfig overrides the transient retry policy
func WithRetryConfig(rc resilience.RetryConfig) ExtractionOption {
	return func(c *extractionConfig) {
		c.retry = rc
	}
}

// WithExtractionHTTPClient swaps the transport, used by tests
func WithExtractionHTTPClient(hc *http.Client) ExtractionOption {
	return func(c *extractionConfig) {
		c.httpClient = hc
	}
}

func NewExtractionService(cfg config.OpenAIConfig, costService CostService, opts ...ExtractionOption) ExtractionService {
	ec := extractionConfig{retry: resilience.DefaultRetryConfig()}
	for _, o := range opts {
		o(&ec)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are owned by resilience.DoVal so only transient failures repeat
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		clientOpts = append(clientOpts, option.WithBaseURL(base))
	}
	if ec.httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(ec.httpClient))
	}

	model := cfg.ExtractionModel
	if model == "" {
		model = string(openai.ChatModelGPT4_1)
	}

	client := openai.NewClient(clientOpts...)
	return &extractionService{
		client:      &client,
		model:       model,
		retry:       ec.retry,
		costService: costService,
	}
}

// ExtractOrganizations asks the extraction model for the ordered organization list in answer
func (s *extractionService) ExtractOrganizations(ctx context.Context, answer string) ([]string, error) {
	if strings.TrimSpace(answer) == "" {
		return []string{}, nil
	}

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "organizations_extraction",
		Description: openai.String("Ordered list of organizations named in an AI answer"),
		Schema:      GenerateSchema[OrganizationsExtractionResponse](),
		Strict:      openai.Bool(true),
	}

	raw, err := s.complete(ctx, "ranking", organizationsSystemPrompt, buildOrganizationsPrompt(answer), schemaParam)
	if err != nil {
		return nil, err
	}

	if parsed, ok := common.ParseJSONOrDefault[OrganizationsExtractionResponse](raw); ok && parsed.Organizations != nil {
		return parsed.Organizations, nil
	}
	if list, ok := common.ParseJSONOrDefault[[]string](raw); ok {
		return list, nil
	}

	zap.L().Warn("malformed organizations extraction output", zap.String("raw", raw))
	return []string{}, nil
}

// ExtractSentiments asks the extraction model for a sentiment score per organization in answer
func (s *extractionService) ExtractSentiments(ctx context.Context, answer string) ([]OrgSentiment, error) {
	if strings.TrimSpace(answer) == "" {
		return []OrgSentiment{}, nil
	}

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "sentiment_extraction",
		Description: openai.String("Sentiment score per organization mentioned in an AI answer"),
		Schema:      GenerateSchema[SentimentExtractionResponse](),
		Strict:      openai.Bool(true),
	}

	raw, err := s.complete(ctx, "sentiment", sentimentSystemPrompt, buildSentimentPrompt(answer), schemaParam)
	if err != nil {
		return nil, err
	}

	if parsed, ok := common.ParseJSONOrDefault[SentimentExtractionResponse](raw); ok && parsed.Sentiments != nil {
		return parsed.Sentiments, nil
	}
	if list, ok := common.ParseJSONOrDefault[[]OrgSentiment](raw); ok {
		return list, nil
	}

	zap.L().Warn("malformed sentiment extraction output", zap.String("raw", raw))
	return []OrgSentiment{}, nil
}

// complete runs one structured chat completion, retrying transient failures
func (s *extractionService) complete(ctx context.Context, op, system, prompt string, schemaParam openai.ResponseFormatJSONSchemaJSONSchemaParam) (string, error) {
	rc := s.retry
	if rc.OnRetry == nil {
		rc.OnRetry = resilience.RetryLogger("extraction", op)
	}

	return resilience.DoVal(ctx, rc, func(ctx context.Context) (string, error) {
		resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(prompt),
			},
			Model: openai.ChatModel(s.model),
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
			},
			Temperature: openai.Float(0),
		})
		if err != nil {
			return "", classifyOpenAIError(err, op)
		}
		if len(resp.Choices) == 0 {
			return "", eris.Errorf("extraction: %s returned no choices", op)
		}

		if s.costService != nil {
			cost := s.costService.CalculateCost("openai", s.model, int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens), false)
			zap.L().Debug("extraction call",
				zap.String("operation", op),
				zap.Int64("input_tokens", resp.Usage.PromptTokens),
				zap.Int64("output_tokens", resp.Usage.CompletionTokens),
				zap.Float64("cost", cost),
			)
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// classifyOpenAIError marks server-side failures as transient so DoVal retries them
func classifyOpenAIError(err error, op string) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(eris.Wrapf(err, "extraction: %s", op), apiErr.StatusCode)
	}
	return eris.Wrapf(err, "extraction: %s", op)
}

func buildOrganizationsPrompt(answer string) string {
	return fmt.Sprintf(`List every organization (company, insurer, broker, bank or institution) named in the answer below.
Keep the order in which the answer presents them, most prominent first, and list each organization once.
Return JSON of the form {"organizations": ["Name 1", "Name 2"]}. Return an empty list when none are named.

Answer:
%s`, answer)
}

func buildSentimentPrompt(answer string) string {
	return fmt.Sprintf(`For every organization named in the answer below, score how the answer portrays it.
Use a number between -1 (clearly negative) and 1 (clearly positive); 0 means neutral.
Return JSON of the form {"sentiments": [{"organization": "Name", "sentiment_score": 0.5}]}.

Answer:
%s`, answer)
}
