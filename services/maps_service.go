// services/maps_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/models"
	"github.com/AI-Template-SDK/senso-tracker/internal/places"
	"github.com/AI-Template-SDK/senso-tracker/internal/resilience"
	"github.com/AI-Template-SDK/senso-tracker/internal/runner"
	"github.com/AI-Template-SDK/senso-tracker/internal/scoring"
)

// DefaultMapsQueryTemplate is the Places query when the tracking file sets none
const DefaultMapsQueryTemplate = "{keyword} insurance in {location}"

type mapsService struct {
	cfg    *config.Config
	client places.Client
	store  MapsStore
	retry  resilience.RetryConfig
}

// MapsOption configures the maps service
type MapsOption func(*mapsService)

// WithMapsRetryConfig overrides the transient retry policy for Places calls
func WithMapsRetryConfig(rc resilience.RetryConfig) MapsOption {
	return func(s *mapsService) {
		s.retry = rc
	}
}

func NewMapsService(cfg *config.Config, client places.Client, store MapsStore, opts ...MapsOption) MapsService {
	s := &mapsService{
		cfg:    cfg,
		client: client,
		store:  store,
		retry:  resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Collect searches Places once per product x location and ranks the first
// result whose name contains a search phrase. A failed search is recorded on
// its cell and does not stop the others.
func (s *mapsService) Collect(ctx context.Context, req MapsRequest) (*MapsResult, error) {
	path := req.ConfigPath
	if path == "" {
		path = s.cfg.TrackingPath
	}
	tracking, err := config.LoadTracking(path)
	if err != nil {
		return nil, err
	}

	products := firstNonEmpty(req.Products, tracking.Products)
	locations := firstNonEmpty(req.Locations, tracking.Locations)
	template := req.QueryTemplate
	if template == "" {
		template = tracking.MapsQueryTemplate
	}
	if template == "" {
		template = DefaultMapsQueryTemplate
	}

	cells := make([]*MapsCell, 0, len(products)*len(locations))
	for _, product := range products {
		for _, location := range locations {
			cells = append(cells, &MapsCell{
				Product:  product,
				Location: location,
				Query:    BuildPrompt(template, product, location),
			})
		}
	}

	res := &MapsResult{BatchID: uuid.NewString(), Cells: cells}
	log := zap.L().With(zap.String("batch_id", res.BatchID), zap.String("source", "places"))
	log.Info("starting maps collection", zap.Int("cells", len(cells)))

	capacity := s.cfg.Runner.Capacity
	if capacity <= 0 {
		capacity = runner.DefaultCapacity
	}
	rc := s.retry
	if rc.OnRetry == nil {
		rc.OnRetry = resilience.RetryLogger("places", "text_search")
	}

	// each goroutine owns one cell, so no lock is needed
	var g errgroup.Group
	g.SetLimit(capacity)
	for _, cell := range cells {
		g.Go(func() error {
			resp, err := resilience.DoVal(ctx, rc, func(ctx context.Context) (*places.TextSearchResponse, error) {
				return s.client.TextSearch(ctx, cell.Query)
			})
			if err != nil {
				log.Warn("places search failed",
					zap.String("product", cell.Product),
					zap.String("location", cell.Location),
					zap.Error(err),
				)
				cell.Error = err.Error()
				return nil
			}
			RankPlace(cell, resp.Places, tracking.SearchPhrases)
			return nil
		})
	}
	_ = g.Wait()

	ranks := make([]*int, 0, len(cells))
	ratings := make([]*float64, 0, len(cells))
	for _, cell := range cells {
		if cell.Error != "" {
			res.Failed++
			continue
		}
		ranks = append(ranks, cell.Rank)
		ratings = append(ratings, cell.Rating)
	}
	res.AverageRank = scoring.Mean(ranks)
	res.AverageRating = scoring.Mean(ratings)

	log.Info("maps collection complete", zap.Int("failed", res.Failed))
	return res, nil
}

// RankPlace sets the cell's rank, rating and review count from the first
// place naming the brand. Nothing is set when no place matches.
func RankPlace(cell *MapsCell, results []places.Place, phrases []string) {
	names := make([]string, len(results))
	for i, p := range results {
		names[i] = p.DisplayName.Text
	}
	rank := ResolveRank(names, phrases)
	if rank == nil {
		return
	}

	place := results[*rank-1]
	cell.Rank = rank
	cell.Matched = place.DisplayName.Text
	// a place without reviews reports rating 0, which is not a score
	if place.UserRatingCount > 0 {
		rating, reviews := place.Rating, place.UserRatingCount
		cell.Rating = &rating
		cell.Reviews = &reviews
	}
}

// TrackMaps collects the configured matrix and persists it under now's date
func (s *mapsService) TrackMaps(ctx context.Context, now time.Time) (*MapsResult, error) {
	res, err := s.Collect(ctx, MapsRequest{})
	if err != nil {
		return nil, err
	}
	if err := s.Persist(ctx, res, now); err != nil {
		return res, err
	}
	return res, nil
}

// Persist writes one maps row per collected cell. Failed searches are skipped
// since a missing rank already means the brand was not listed.
func (s *mapsService) Persist(ctx context.Context, res *MapsResult, now time.Time) error {
	date, day := now.Format("200601"), now.Format("02")
	log := zap.L().With(zap.String("batch_id", res.BatchID), zap.String("source", "places"))

	var errs []error
	written := 0
	for _, cell := range res.Cells {
		if cell.Error != "" {
			continue
		}
		rec := &models.MapsRecord{
			Product:  cell.Product,
			Location: cell.Location,
			IsCity:   models.IsCity(cell.Location),
			Date:     date,
			Day:      day,
			Rank:     cell.Rank,
			Rating:   cell.Rating,
			Reviews:  cell.Reviews,
		}
		if _, err := s.store.InsertMapsRecord(ctx, rec); err != nil {
			log.Error("failed to persist maps record",
				zap.String("product", cell.Product),
				zap.String("location", cell.Location),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		written++
	}

	log.Info("maps persisted", zap.String("date", date), zap.String("day", day), zap.Int("written", written))
	if len(errs) == 0 {
		return nil
	}
	return &PersistError{Written: written, Failed: len(errs), Err: errors.Join(errs...)}
}
