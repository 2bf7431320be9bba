// internal/models/models.go
package models

import (
	"time"
)

// Regions are the region-level locations. Every other location is city-level.
var Regions = []string{"Manitoba", "Alberta", "British Columbia", "Saskatchewan", "Ontario", "Canada"}

// IsCity reports whether a location is city-level, i.e. not one of the fixed regions.
func IsCity(location string) bool {
	for _, region := range Regions {
		if region == location {
			return false
		}
	}
	return true
}

// Task is one product x location cell for a single provider
type Task struct {
	Product        string `json:"product"`
	Location       string `json:"location"`
	Provider       string `json:"provider"`
	PromptTemplate string `json:"prompt_template"`
}

// ExtractionResult is the signal set derived from one provider answer
type ExtractionResult struct {
	Product           string         `json:"product"`
	Location          string         `json:"location"`
	Provider          string         `json:"provider"`
	AnswerText        string         `json:"-"`
	Sources           []string       `json:"sources"`
	PresenceMatches   map[string]int `json:"presence_matches"`
	HasMatch          bool           `json:"has_match"`
	CompetitorMatches map[string]int `json:"competitor_matches"`
	Rank              *int           `json:"rank"`
	Sentiment         *float64       `json:"sentiment"`
	InputTokens       int            `json:"input_tokens"`
	OutputTokens      int            `json:"output_tokens"`
	Error             string         `json:"error,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
}

// TotalCount is the 0/1 presence flag persisted for the cell
func (r *ExtractionResult) TotalCount() int {
	if r.HasMatch {
		return 1
	}
	return 0
}

// DailyRecord is one persisted row per product x location x provider x day
type DailyRecord struct {
	ID          int64    `db:"id" json:"id"`
	Product     string   `db:"product" json:"product"`
	Location    string   `db:"location" json:"location"`
	IsCity      bool     `db:"is_city" json:"is_city"`
	TotalCount  int      `db:"total_count" json:"total_count"`
	AIPlatform  string   `db:"ai_platform" json:"ai_platform"`
	Date        string   `db:"date" json:"date"` // YYYYMM
	Day         string   `db:"day" json:"day"`   // DD
	Competitor1 int      `db:"competitor_1" json:"competitor_1"`
	Competitor2 int      `db:"competitor_2" json:"competitor_2"`
	Competitor3 int      `db:"competitor_3" json:"competitor_3"`
	Competitor4 int      `db:"competitor_4" json:"competitor_4"`
	Rank        *int     `db:"rank" json:"rank"`
	Sentiment   *float64 `db:"sentiment" json:"sentiment"`
}

// SourceCount is one domain with its mention count
type SourceCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// SourceSummary is one persisted row per provider x day
type SourceSummary struct {
	ID         int64          `db:"id" json:"id"`
	AIPlatform string         `db:"ai_platform" json:"ai_platform"`
	Date       string         `db:"date" json:"date"`
	Day        string         `db:"day" json:"day"`
	Sources    map[string]int `db:"-" json:"sources"`
}

// AggregateRow is one grouped sum returned by the aggregate endpoints.
// Product and Location are empty when not part of the grouping.
type AggregateRow struct {
	Product    string `db:"product" json:"product,omitempty"`
	Location   string `db:"location" json:"location,omitempty"`
	AIPlatform string `db:"ai_platform" json:"ai_platform"`
	Day        string `db:"day" json:"day"`
	Total      int    `db:"total" json:"total_count"`
}

// ScoreInputs is the aggregate read the scoring formulas consume
type ScoreInputs struct {
	Sum               int      `db:"total_sum" json:"total_sum"`
	DistinctLocations int      `db:"n_locations" json:"distinct_locations"`
	DistinctProducts  int      `db:"n_products" json:"distinct_products"`
	DistinctPlatforms int      `db:"n_platforms" json:"distinct_platforms"`
	DistinctDays      int      `db:"n_days" json:"distinct_days"`
	AvgRank           *float64 `db:"avg_rank" json:"avg_rank"`
	AvgSentiment      *float64 `db:"avg_sentiment" json:"avg_sentiment"`
}

// LocationTotal is the metric sum for one location
type LocationTotal struct {
	Location string `db:"location" json:"location"`
	Total    int    `db:"total" json:"total"`
}

// PlatformTotal is the metric sum for one AI platform
type PlatformTotal struct {
	AIPlatform string `db:"ai_platform" json:"ai_platform"`
	Total      int    `db:"total" json:"total"`
}

// MapsRecord is one persisted Places ranking per product x location x day.
// Rank, Rating and Reviews are nil when the brand is not among the results.
type MapsRecord struct {
	ID       int64    `db:"id" json:"id"`
	Product  string   `db:"product" json:"product"`
	Location string   `db:"location" json:"location"`
	IsCity   bool     `db:"is_city" json:"is_city"`
	Date     string   `db:"date" json:"date"`
	Day      string   `db:"day" json:"day"`
	Rank     *int     `db:"rank" json:"rank"`
	Rating   *float64 `db:"rating" json:"rating"`
	Reviews  *int     `db:"reviews" json:"reviews"`
}

// MapsSummary averages one product x location's Places ranking over a month
type MapsSummary struct {
	Product    string   `db:"product" json:"product"`
	Location   string   `db:"location" json:"location"`
	AvgRank    *float64 `db:"avg_rank" json:"avg_rank"`
	AvgRating  *float64 `db:"avg_rating" json:"avg_rating"`
	AvgReviews *float64 `db:"avg_reviews" json:"avg_reviews"`
	Days       int      `db:"n_days" json:"days"`
}

// Metric columns that can be summed by the aggregate queries
var Metrics = []string{"total_count", "competitor_1", "competitor_2", "competitor_3", "competitor_4"}

// Grouping dimensions for the aggregate queries
const (
	GroupByProduct         = "product"
	GroupByLocation        = "location"
	GroupByProductLocation = "product_location"
)

// AggregateFilter narrows daily records to one reporting month and partition
type AggregateFilter struct {
	Date      string   `json:"date"` // YYYYMM
	IsCity    *bool    `json:"is_city,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	Metric    string   `json:"metric,omitempty"`
	GroupBy   string   `json:"group_by,omitempty"`
}

// MetricColumn returns the whitelisted metric column, total_count by default.
func (f AggregateFilter) MetricColumn() (string, bool) {
	if f.Metric == "" {
		return "total_count", true
	}
	for _, m := range Metrics {
		if m == f.Metric {
			return m, true
		}
	}
	return "", false
}
