// services/report_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/AI-Template-SDK/senso-tracker/internal/models"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
	"github.com/AI-Template-SDK/senso-tracker/internal/scoring"
)

const (
	reportCacheTTL     = 5 * time.Minute
	reportCacheCleanup = 10 * time.Minute
)

// ScoreReport is the scoring view for one month and partition
type ScoreReport struct {
	Month       string                   `json:"month"`
	DaysInMonth int                      `json:"days_in_month"`
	Overall     scoring.Score            `json:"overall"`
	Platforms   map[string]scoring.Score `json:"platforms"`
	// ZeroVisibilityLocations had no brand mention on any product or day
	ZeroVisibilityLocations []string `json:"zero_visibility_locations"`
}

// DaysReport lists the tracked days of a month
type DaysReport struct {
	Month       string   `json:"month"`
	DaysInMonth int      `json:"days_in_month"`
	DaysTracked []string `json:"days_tracked"`
}

type reportService struct {
	store ReportStore
	cache *gocache.Cache
}

func NewReportService(store ReportStore) ReportService {
	return &reportService{
		store: store,
		cache: gocache.New(reportCacheTTL, reportCacheCleanup),
	}
}

// cached returns the value under key or computes and stores it
func cached[T any](c *gocache.Cache, key string, fn func() (T, error)) (T, error) {
	if v, found := c.Get(key); found {
		return v.(T), nil
	}
	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	c.SetDefault(key, v)
	return v, nil
}

func (s *reportService) Invalidate() {
	s.cache.Flush()
}

func (s *reportService) Aggregate(ctx context.Context, q AggregateQuery) ([]models.AggregateRow, error) {
	if _, _, err := scoring.ParseMonth(q.Month); err != nil {
		return nil, err
	}
	provider, err := normalizeProvider(q.Provider)
	if err != nil {
		return nil, err
	}
	f := models.AggregateFilter{
		Date:      q.Month,
		IsCity:    q.IsCity,
		Locations: q.Locations,
		Provider:  provider,
		Metric:    q.Metric,
		GroupBy:   q.GroupBy,
	}
	return cached(s.cache, "aggregate:"+filterKey(f), func() ([]models.AggregateRow, error) {
		return s.store.Aggregate(ctx, f)
	})
}

// Scores computes overall and per platform visibility for the month
func (s *reportService) Scores(ctx context.Context, q ScoreQuery) (*ScoreReport, error) {
	days, err := scoring.DaysInMonth(q.Month)
	if err != nil {
		return nil, err
	}
	provider, err := normalizeProvider(q.Provider)
	if err != nil {
		return nil, err
	}
	f := models.AggregateFilter{
		Date:      q.Month,
		IsCity:    q.IsCity,
		Locations: q.Locations,
		Provider:  provider,
		Metric:    q.Metric,
	}

	return cached(s.cache, "scores:"+filterKey(f), func() (*ScoreReport, error) {
		overall, err := s.store.ScoreInputs(ctx, f)
		if err != nil {
			return nil, err
		}

		report := &ScoreReport{
			Month:                   q.Month,
			DaysInMonth:             days,
			Overall:                 scoring.Compute(*overall),
			Platforms:               map[string]scoring.Score{},
			ZeroVisibilityLocations: []string{},
		}

		platforms := []string{f.Provider}
		if f.Provider == "" {
			totals, err := s.store.PlatformTotals(ctx, f)
			if err != nil {
				return nil, err
			}
			platforms = platforms[:0]
			for _, t := range totals {
				platforms = append(platforms, t.AIPlatform)
			}
		}
		for _, p := range platforms {
			pf := f
			pf.Provider = p
			in, err := s.store.ScoreInputs(ctx, pf)
			if err != nil {
				return nil, err
			}
			// a platform with no rows this month is left out
			if in.DistinctDays == 0 {
				continue
			}
			report.Platforms[p] = scoring.Compute(*in)
		}

		totals, err := s.store.LocationTotals(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, t := range totals {
			if t.Total == 0 {
				report.ZeroVisibilityLocations = append(report.ZeroVisibilityLocations, t.Location)
			}
		}
		return report, nil
	})
}

// TopSources merges a provider's daily summaries for the month and keeps the top domains
func (s *reportService) TopSources(ctx context.Context, provider, month string) ([]models.SourceCount, error) {
	if _, _, err := scoring.ParseMonth(month); err != nil {
		return nil, err
	}
	id, err := providers.Parse(provider)
	if err != nil {
		return nil, err
	}

	return cached(s.cache, "sources:"+id.String()+":"+month, func() ([]models.SourceCount, error) {
		summaries, err := s.store.SourceSummaries(ctx, id.String(), month)
		if err != nil {
			return nil, err
		}
		counts := make(map[string]int)
		for _, sum := range summaries {
			for domain, n := range sum.Sources {
				counts[domain] += n
			}
		}
		return TopSourceCounts(counts, MaxSources), nil
	})
}

func (s *reportService) Days(ctx context.Context, month string) (*DaysReport, error) {
	n, err := scoring.DaysInMonth(month)
	if err != nil {
		return nil, err
	}
	tracked, err := s.store.DistinctDays(ctx, month)
	if err != nil {
		return nil, err
	}
	return &DaysReport{Month: month, DaysInMonth: n, DaysTracked: tracked}, nil
}

// Maps returns the month's Places averages per product and location
func (s *reportService) Maps(ctx context.Context, month string, isCity *bool) ([]models.MapsSummary, error) {
	if _, _, err := scoring.ParseMonth(month); err != nil {
		return nil, err
	}
	key := "maps:" + filterKey(models.AggregateFilter{Date: month, IsCity: isCity})
	return cached(s.cache, key, func() ([]models.MapsSummary, error) {
		return s.store.MapsSummaries(ctx, month, isCity)
	})
}

// normalizeProvider maps aliases onto the stored platform name. Empty means all.
func normalizeProvider(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	id, err := providers.Parse(raw)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func filterKey(f models.AggregateFilter) string {
	city := "all"
	if f.IsCity != nil {
		city = fmt.Sprintf("%t", *f.IsCity)
	}
	locations := append([]string(nil), f.Locations...)
	sort.Strings(locations)
	return strings.Join([]string{f.Date, city, strings.Join(locations, ","), f.Provider, f.Metric, f.GroupBy}, "|")
}
