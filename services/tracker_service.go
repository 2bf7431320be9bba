// services/tracker_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/metrics"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
	"github.com/AI-Template-SDK/senso-tracker/internal/runner"
)

// DefaultPromptTemplate is used when neither the request nor the tracking file sets one
const DefaultPromptTemplate = "give me the best {keyword} insurance companies in {location}"

// MaxSources is how many domains a batch keeps in its source summary
const MaxSources = 20

type trackerService struct {
	cfg         *config.Config
	factory     providers.Factory
	extractor   SignalExtractor
	store       TrackerStore
	costService CostService
	metrics     *metrics.TrackerMetrics
	runnerOpts  []runner.Option
}

// TrackerOption configures the tracker service
type TrackerOption func(*trackerService)

// WithTrackerMetrics reports batch and task outcomes to m
func WithTrackerMetrics(m *metrics.TrackerMetrics) TrackerOption {
	return func(s *trackerService) {
		s.metrics = m
	}
}

// WithRunnerOptions passes extra options to every batch runner
func WithRunnerOptions(opts ...runner.Option) TrackerOption {
	return func(s *trackerService) {
		s.runnerOpts = append(s.runnerOpts, opts...)
	}
}

func NewTrackerService(cfg *config.Config, factory providers.Factory, extractor SignalExtractor, store TrackerStore, costService CostService, opts ...TrackerOption) TrackerService {
	s := &trackerService{
		cfg:         cfg,
		factory:     factory,
		extractor:   extractor,
		store:       store,
		costService: costService,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BuildPrompt interpolates {keyword} and {location} into template
func BuildPrompt(template, product, location string) string {
	return strings.NewReplacer("{keyword}", product, "{location}", location).Replace(template)
}

// RunBatch asks one provider every product x location prompt and extracts the signals.
// Only configuration and provider registry errors are returned; per-cell failures
// are carried in the cell's Error field.
func (s *trackerService) RunBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	id, err := providers.Parse(req.Provider)
	if err != nil {
		return nil, err
	}

	path := req.ConfigPath
	if path == "" {
		path = s.cfg.TrackingPath
	}
	tracking, err := config.LoadTracking(path)
	if err != nil {
		return nil, err
	}

	provider, err := s.factory(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "tracker: create provider %s", id)
	}

	products := firstNonEmpty(req.Products, tracking.Products)
	locations := firstNonEmpty(req.Locations, tracking.Locations)
	template := req.PromptTemplate
	if template == "" {
		template = tracking.PromptTemplate
	}
	if template == "" {
		template = DefaultPromptTemplate
	}

	tasks := make([]models.Task, 0, len(products)*len(locations))
	for _, product := range products {
		for _, location := range locations {
			tasks = append(tasks, models.Task{
				Product:        product,
				Location:       location,
				Provider:       id.String(),
				PromptTemplate: template,
			})
		}
	}

	result := &BatchResult{
		BatchID:        uuid.NewString(),
		Provider:       id.String(),
		Answers:        []string{},
		Results:        make([]*models.ExtractionResult, 0, len(tasks)),
		Sources:        []models.SourceCount{},
		CompetitorKeys: competitorKeys(tracking.Competitors),
	}

	log := zap.L().With(zap.String("batch_id", result.BatchID), zap.String("provider", result.Provider))
	log.Info("starting batch",
		zap.Int("products", len(products)),
		zap.Int("locations", len(locations)),
		zap.Int("tasks", len(tasks)),
	)
	if len(tasks) == 0 {
		return result, nil
	}

	runnerOpts := append([]runner.Option{runner.WithMetrics(s.metrics), runner.WithLogger(log)}, s.runnerOpts...)
	r := runner.New(runner.RateLimiterConfig{
		Capacity: s.cfg.Runner.Capacity,
		RPM:      s.cfg.Runner.RPM,
	}, runnerOpts...)

	job := func(ctx context.Context, task models.Task) (*models.ExtractionResult, error) {
		answer, err := provider.Ask(ctx, BuildPrompt(task.PromptTemplate, task.Product, task.Location))
		if err != nil {
			return nil, err
		}
		return s.extractor.Extract(ctx, answer, tracking)
	}

	// results are folded here only, so the counter needs no lock
	counts := make(map[string]int)
	for res := range r.Run(ctx, tasks, job) {
		result.Results = append(result.Results, res)
		if res.Error != "" {
			result.Failed++
			continue
		}
		if res.AnswerText != "" {
			result.Answers = append(result.Answers, res.AnswerText)
		}
		for _, domain := range res.Sources {
			counts[domain]++
		}
		if s.costService != nil {
			result.Cost += s.costService.CalculateCost(provider.Name(), provider.Model(), res.InputTokens, res.OutputTokens, true)
		}
	}

	sortByCell(result.Results, products, locations)
	result.Sources = TopSourceCounts(counts, MaxSources)

	status := "ok"
	if result.Failed > 0 {
		status = "partial"
	}
	s.metrics.ObserveBatch(result.Provider, status)
	log.Info("batch complete",
		zap.Int("results", len(result.Results)),
		zap.Int("failed", result.Failed),
		zap.Int("source_domains", len(result.Sources)),
		zap.Float64("estimated_cost", result.Cost),
	)

	return result, nil
}

// PersistError reports the inserts a Persist call could not make. Rows that
// were written stay in place, so a partially persisted batch must not be
// persisted again for the same day.
type PersistError struct {
	Written int
	Failed  int
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("tracker: persisted %d rows, %d failed: %v", e.Written, e.Failed, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Partial reports whether any row was written before the failures
func (e *PersistError) Partial() bool {
	return e.Written > 0
}

// TrackDaily runs the configured batch for provider and persists it under now's date
func (s *trackerService) TrackDaily(ctx context.Context, provider string, now time.Time) (*BatchResult, error) {
	res, err := s.RunBatch(ctx, BatchRequest{Provider: provider})
	if err != nil {
		return nil, err
	}
	if err := s.Persist(ctx, res, now); err != nil {
		return res, err
	}
	return res, nil
}

// Persist writes one daily record per cell and one source summary for the batch.
// Inserts are independent. Failures are logged and returned as a *PersistError.
func (s *trackerService) Persist(ctx context.Context, res *BatchResult, now time.Time) error {
	date, day := now.Format("200601"), now.Format("02")
	log := zap.L().With(zap.String("batch_id", res.BatchID), zap.String("provider", res.Provider))

	var errs []error
	written := 0
	for _, cell := range res.Results {
		rec := ToDailyRecord(cell, res.CompetitorKeys, date, day)
		if _, err := s.store.InsertDailyRecord(ctx, rec); err != nil {
			log.Error("failed to persist daily record",
				zap.String("product", cell.Product),
				zap.String("location", cell.Location),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		written++
	}

	summary := &models.SourceSummary{
		AIPlatform: res.Provider,
		Date:       date,
		Day:        day,
		Sources:    res.SourceCounts(),
	}
	if _, err := s.store.InsertSourceSummary(ctx, summary); err != nil {
		log.Error("failed to persist source summary", zap.Error(err))
		errs = append(errs, err)
	} else {
		written++
	}

	log.Info("batch persisted",
		zap.String("date", date),
		zap.String("day", day),
		zap.Int("written", written),
		zap.Int("errors", len(errs)),
	)
	if len(errs) == 0 {
		return nil
	}
	return &PersistError{Written: written, Failed: len(errs), Err: errors.Join(errs...)}
}

// ToDailyRecord maps a cell onto the persisted row. Competitor flags fill
// competitor_1..4 in the order of keys.
func ToDailyRecord(cell *models.ExtractionResult, keys []string, date, day string) *models.DailyRecord {
	rec := &models.DailyRecord{
		Product:    cell.Product,
		Location:   cell.Location,
		IsCity:     models.IsCity(cell.Location),
		TotalCount: cell.TotalCount(),
		AIPlatform: cell.Provider,
		Date:       date,
		Day:        day,
		Rank:       cell.Rank,
		Sentiment:  cell.Sentiment,
	}

	slots := []*int{&rec.Competitor1, &rec.Competitor2, &rec.Competitor3, &rec.Competitor4}
	for i, key := range keys {
		if i >= len(slots) {
			break
		}
		*slots[i] = cell.CompetitorMatches[key]
	}
	return rec
}

// TopSourceCounts returns the n most frequent domains, ties broken alphabetically
func TopSourceCounts(counts map[string]int, n int) []models.SourceCount {
	out := make([]models.SourceCount, 0, len(counts))
	for domain, count := range counts {
		out = append(out, models.SourceCount{Domain: domain, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func competitorKeys(competitors config.Competitors) []string {
	keys := make([]string, len(competitors))
	for i, c := range competitors {
		keys[i] = c.Key
	}
	return keys
}

func firstNonEmpty(override, fallback []string) []string {
	if len(override) > 0 {
		return override
	}
	return fallback
}

// sortByCell orders results by product then location as configured
func sortByCell(results []*models.ExtractionResult, products, locations []string) {
	pIdx := indexOf(products)
	lIdx := indexOf(locations)
	sort.SliceStable(results, func(i, j int) bool {
		if pi, pj := pIdx[results[i].Product], pIdx[results[j].Product]; pi != pj {
			return pi < pj
		}
		return lIdx[results[i].Location] < lIdx[results[j].Location]
	})
}

func indexOf(values []string) map[string]int {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		if _, ok := idx[v]; !ok {
			idx[v] = i
		}
	}
	return idx
}
