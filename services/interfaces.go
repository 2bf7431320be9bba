// services/interfaces.go
package services

import (
	"context"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
)

// TrackerStore is the write side of persistence
type TrackerStore interface {
	InsertDailyRecord(ctx context.Context, rec *models.DailyRecord) (*models.DailyRecord, error)
	InsertSourceSummary(ctx context.Context, sum *models.SourceSummary) (*models.SourceSummary, error)
}

// ReportStore is the aggregate read side of persistence
type ReportStore interface {
	ScoreInputs(ctx context.Context, f models.AggregateFilter) (*models.ScoreInputs, error)
	Aggregate(ctx context.Context, f models.AggregateFilter) ([]models.AggregateRow, error)
	LocationTotals(ctx context.Context, f models.AggregateFilter) ([]models.LocationTotal, error)
	PlatformTotals(ctx context.Context, f models.AggregateFilter) ([]models.PlatformTotal, error)
	SourceSummaries(ctx context.Context, provider, month string) ([]models.SourceSummary, error)
	DistinctDays(ctx context.Context, month string) ([]string, error)
	MapsSummaries(ctx context.Context, month string, isCity *bool) ([]models.MapsSummary, error)
}

// MapsStore persists Places rankings
type MapsStore interface {
	InsertMapsRecord(ctx context.Context, rec *models.MapsRecord) (*models.MapsRecord, error)
}

type CostService interface {
	CalculateCost(provider string, model string, inputTokens int, outputTokens int, websearch bool) float64
}

// ExtractionService runs the secondary LLM calls that restructure a free-text answer.
// Malformed model output yields an empty list, never an error.
type ExtractionService interface {
	ExtractOrganizations(ctx context.Context, answer string) ([]string, error)
	ExtractSentiments(ctx context.Context, answer string) ([]OrgSentiment, error)
}

// SignalExtractor derives every per-cell signal from one provider answer
type SignalExtractor interface {
	Extract(ctx context.Context, answer *common.Answer, tracking *config.Tracking) (*models.ExtractionResult, error)
}

type TrackerService interface {
	RunBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)
	TrackDaily(ctx context.Context, provider string, now time.Time) (*BatchResult, error)
	Persist(ctx context.Context, res *BatchResult, now time.Time) error
}

type ReportService interface {
	Aggregate(ctx context.Context, q AggregateQuery) ([]models.AggregateRow, error)
	Scores(ctx context.Context, q ScoreQuery) (*ScoreReport, error)
	TopSources(ctx context.Context, provider, month string) ([]models.SourceCount, error)
	Days(ctx context.Context, month string) (*DaysReport, error)
	Maps(ctx context.Context, month string, isCity *bool) ([]models.MapsSummary, error)
	Invalidate()
}

// MapsService ranks the brand in Google Places results per product x location
type MapsService interface {
	Collect(ctx context.Context, req MapsRequest) (*MapsResult, error)
	TrackMaps(ctx context.Context, now time.Time) (*MapsResult, error)
	Persist(ctx context.Context, res *MapsResult, now time.Time) error
}

// OrgSentiment is one organization's sentiment as judged by the extraction model
type OrgSentiment struct {
	Organization   string  `json:"organization" jsonschema_description:"Organization name as written in the text"`
	SentimentScore float64 `json:"sentiment_score" jsonschema_description:"Sentiment toward the organization from -1 (negative) to 1 (positive)"`
}

// OrganizationsExtractionResponse is the structured output of the ranking call
type OrganizationsExtractionResponse struct {
	Organizations []string `json:"organizations" jsonschema_description:"Organization names in the order they appear in the text"`
}

// SentimentExtractionResponse is the structured output of the sentiment call
type SentimentExtractionResponse struct {
	Sentiments []OrgSentiment `json:"sentiments" jsonschema_description:"One entry per organization mentioned in the text"`
}

// BatchRequest is one run over a provider. Empty overrides fall back to the tracking file.
type BatchRequest struct {
	Provider       string   `json:"provider"`
	ConfigPath     string   `json:"-"`
	Locations      []string `json:"locations,omitempty"`
	Products       []string `json:"products,omitempty"`
	PromptTemplate string   `json:"prompt_template,omitempty"`
}

// BatchResult is the outcome of RunBatch. Results holds exactly one entry per cell.
type BatchResult struct {
	BatchID        string                     `json:"batch_id"`
	Provider       string                     `json:"provider"`
	Answers        []string                   `json:"answers"`
	Results        []*models.ExtractionResult `json:"results"`
	Sources        []models.SourceCount       `json:"sources"`
	CompetitorKeys []string                   `json:"competitor_keys"`
	Cost           float64                    `json:"cost"`
	Failed         int                        `json:"failed"`
}

// SourceCounts flattens Sources for persistence
func (r *BatchResult) SourceCounts() map[string]int {
	counts := make(map[string]int, len(r.Sources))
	for _, s := range r.Sources {
		counts[s.Domain] = s.Count
	}
	return counts
}

// AggregateQuery selects grouped sums for a month
type AggregateQuery struct {
	Month     string   `json:"month"`
	IsCity    *bool    `json:"is_city,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	GroupBy   string   `json:"group_by,omitempty"`
	Metric    string   `json:"metric,omitempty"`
}

// ScoreQuery selects the row set the scores are computed over
type ScoreQuery struct {
	Month     string   `json:"month"`
	IsCity    *bool    `json:"is_city,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	Metric    string   `json:"metric,omitempty"`
}

func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// MapsRequest is one Places run. Empty overrides fall back to the tracking file.
type MapsRequest struct {
	ConfigPath    string   `json:"-"`
	Locations     []string `json:"locations,omitempty"`
	Products      []string `json:"products,omitempty"`
	QueryTemplate string   `json:"query_template,omitempty"`
}

// MapsCell is the Places ranking of one product x location
type MapsCell struct {
	Product  string   `json:"product"`
	Location string   `json:"location"`
	Query    string   `json:"query"`
	Matched  string   `json:"matched,omitempty"`
	Rank     *int     `json:"rank"`
	Rating   *float64 `json:"rating"`
	Reviews  *int     `json:"reviews"`
	Error    string   `json:"error,omitempty"`
}

// MapsResult holds every cell in product then location order
type MapsResult struct {
	BatchID       string      `json:"batch_id"`
	Cells         []*MapsCell `json:"cells"`
	Failed        int         `json:"failed"`
	AverageRank   *float64    `json:"average_rank"`
	AverageRating *float64    `json:"average_rating"`
}
