// workflows/maps_processor.go
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

type MapsProcessor struct {
	cfg     *config.Config
	maps    services.MapsService
	reports services.ReportService
	alerter Alerter
	client  inngestgo.Client
}

func NewMapsProcessor(cfg *config.Config, maps services.MapsService, reports services.ReportService) *MapsProcessor {
	return &MapsProcessor{
		cfg:     cfg,
		maps:    maps,
		reports: reports,
	}
}

func (p *MapsProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

func (p *MapsProcessor) SetAlerter(a Alerter) {
	p.alerter = a
}

// MapsSummary is the step output recorded for a Maps collection
type MapsSummary struct {
	BatchID       string   `json:"batch_id"`
	Date          string   `json:"date"`
	Day           string   `json:"day"`
	Cells         int      `json:"cells"`
	Ranked        int      `json:"ranked"`
	Failed        int      `json:"failed"`
	AverageRank   *float64 `json:"average_rank"`
	AverageRating *float64 `json:"average_rating"`
}

// SummarizeMaps reduces a Maps result to its step output
func SummarizeMaps(res *services.MapsResult, at time.Time) MapsSummary {
	s := MapsSummary{
		BatchID:       res.BatchID,
		Date:          at.Format("200601"),
		Day:           at.Format("02"),
		Cells:         len(res.Cells),
		Failed:        res.Failed,
		AverageRank:   res.AverageRank,
		AverageRating: res.AverageRating,
	}
	for _, c := range res.Cells {
		if c.Rank != nil {
			s.Ranked++
		}
	}
	return s
}

// MapsFailureDetail describes a failed or partially failed Maps collection
func MapsFailureDetail(summary *MapsSummary, err error) string {
	detail := "source=places"
	if summary != nil {
		detail += fmt.Sprintf(" batch_id=%s failed=%d/%d", summary.BatchID, summary.Failed, summary.Cells)
	}
	if err != nil {
		detail += fmt.Sprintf(" error=%v", err)
	}
	return detail
}

// DailyMaps collects and stores the Places ranking once a day
func (p *MapsProcessor) DailyMaps() inngestgo.ServableFunction {
	cron := p.cfg.Inngest.MapsCron
	if cron == "" {
		cron = "0 7 * * *"
	}

	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "tracker-maps-daily",
			Name:    "Daily Google Maps Ranking",
			Retries: inngestgo.IntPtr(2),
		},
		inngestgo.CronTrigger(cron),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			// pinned in a step so every retry stores under the same day
			stamp, err := step.Run(ctx, "resolve-date", func(ctx context.Context) (string, error) {
				return time.Now().UTC().Format(time.RFC3339), nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to resolve date: %w", err)
			}
			at, err := time.Parse(time.RFC3339, stamp)
			if err != nil {
				at = time.Now().UTC()
			}

			res, err := step.Run(ctx, "collect-maps", func(ctx context.Context) (*services.MapsResult, error) {
				res, err := p.maps.Collect(ctx, services.MapsRequest{})
				return res, RetryPolicy(err)
			})
			if err != nil {
				notify(ctx, p.alerter, "Maps collection failed", MapsFailureDetail(nil, err))
				return nil, RetryPolicy(fmt.Errorf("step 'collect-maps' failed: %w", err))
			}

			summary := SummarizeMaps(res, at)
			_, err = step.Run(ctx, "persist-maps", func(ctx context.Context) (int, error) {
				if err := p.maps.Persist(ctx, res, at); err != nil {
					return 0, RetryPolicy(err)
				}
				return summary.Cells - summary.Failed, nil
			})
			if err != nil {
				notify(ctx, p.alerter, "Maps collection failed to persist", MapsFailureDetail(&summary, err))
				return nil, RetryPolicy(fmt.Errorf("step 'persist-maps' failed: %w", err))
			}

			if summary.Failed > 0 {
				_, _ = step.Run(ctx, "alert-maps-partial-failure", func(ctx context.Context) (bool, error) {
					notify(ctx, p.alerter, "Maps collection had failed searches", MapsFailureDetail(&summary, nil))
					return true, nil
				})
			}

			p.reports.Invalidate()
			zap.L().Info("maps collection stored",
				zap.String("batch_id", summary.BatchID),
				zap.Int("cells", summary.Cells),
				zap.Int("ranked", summary.Ranked),
				zap.Int("failed", summary.Failed),
			)
			return summary, nil
		},
	)
	if err != nil {
		zap.L().Error("failed to create maps function", zap.Error(err))
	}

	return fn
}
