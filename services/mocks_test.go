package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/AI-Template-SDK/senso-tracker/internal/models"
)

type fakeExtraction struct {
	orgs          []string
	orgsErr       error
	sentiments    []OrgSentiment
	sentimentsErr error

	mu    sync.Mutex
	calls int
}

func (f *fakeExtraction) ExtractOrganizations(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.orgs, f.orgsErr
}

func (f *fakeExtraction) ExtractSentiments(_ context.Context, _ string) ([]OrgSentiment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.sentiments, f.sentimentsErr
}

type fakeTrackerStore struct {
	mu        sync.Mutex
	records   []*models.DailyRecord
	summaries []*models.SourceSummary
	failOn    string
	failAll   bool
}

func (s *fakeTrackerStore) InsertDailyRecord(_ context.Context, rec *models.DailyRecord) (*models.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll || (s.failOn != "" && rec.Location == s.failOn) {
		return nil, errors.New("insert failed")
	}
	stored := *rec
	stored.ID = int64(len(s.records) + 1)
	s.records = append(s.records, &stored)
	return &stored, nil
}

func (s *fakeTrackerStore) InsertSourceSummary(_ context.Context, sum *models.SourceSummary) (*models.SourceSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errors.New("insert failed")
	}
	stored := *sum
	s.summaries = append(s.summaries, &stored)
	return &stored, nil
}

type fakeReportStore struct {
	inputs     map[string]*models.ScoreInputs // keyed by provider, "" for overall
	rows       []models.AggregateRow
	locations  []models.LocationTotal
	summaries  []models.SourceSummary
	days       []string
	maps       []models.MapsSummary
	err        error
	scoreCalls int
	aggCalls   int
	mapsCalls  int
}

func (s *fakeReportStore) ScoreInputs(_ context.Context, f models.AggregateFilter) (*models.ScoreInputs, error) {
	s.scoreCalls++
	if s.err != nil {
		return nil, s.err
	}
	if in, ok := s.inputs[f.Provider]; ok {
		return in, nil
	}
	return &models.ScoreInputs{}, nil
}

func (s *fakeReportStore) Aggregate(_ context.Context, _ models.AggregateFilter) ([]models.AggregateRow, error) {
	s.aggCalls++
	return s.rows, s.err
}

func (s *fakeReportStore) LocationTotals(_ context.Context, _ models.AggregateFilter) ([]models.LocationTotal, error) {
	return s.locations, s.err
}

func (s *fakeReportStore) PlatformTotals(_ context.Context, _ models.AggregateFilter) ([]models.PlatformTotal, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.PlatformTotal
	for p, in := range s.inputs {
		if p != "" {
			out = append(out, models.PlatformTotal{AIPlatform: p, Total: in.Sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AIPlatform < out[j].AIPlatform })
	return out, nil
}

func (s *fakeReportStore) SourceSummaries(_ context.Context, _, _ string) ([]models.SourceSummary, error) {
	return s.summaries, s.err
}

func (s *fakeReportStore) DistinctDays(_ context.Context, _ string) ([]string, error) {
	return s.days, s.err
}

func (s *fakeReportStore) MapsSummaries(_ context.Context, _ string, _ *bool) ([]models.MapsSummary, error) {
	s.mapsCalls++
	return s.maps, s.err
}

type fakeMapsStore struct {
	mu      sync.Mutex
	records []*models.MapsRecord
	fail    map[string]bool // keyed by location
}

func (s *fakeMapsStore) InsertMapsRecord(_ context.Context, rec *models.MapsRecord) (*models.MapsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[rec.Location] {
		return nil, errors.New("insert failed")
	}
	stored := *rec
	stored.ID = int64(len(s.records) + 1)
	s.records = append(s.records, &stored)
	return &stored, nil
}
