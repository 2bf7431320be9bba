// workflows/batch_processor.go
package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	sdkerrors "github.com/inngest/inngestgo/errors"
	"github.com/inngest/inngestgo/step"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
	"github.com/AI-Template-SDK/senso-tracker/services"
)

type BatchProcessor struct {
	tracker services.TrackerService
	reports services.ReportService
	alerter Alerter
	client  inngestgo.Client
}

func NewBatchProcessor(tracker services.TrackerService, reports services.ReportService) *BatchProcessor {
	return &BatchProcessor{
		tracker: tracker,
		reports: reports,
	}
}

func (p *BatchProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// SetAlerter enables failure alerts
func (p *BatchProcessor) SetAlerter(a Alerter) {
	p.alerter = a
}

// BatchSummary is the step output recorded for a tracked batch
type BatchSummary struct {
	BatchID  string  `json:"batch_id"`
	Provider string  `json:"provider"`
	Date     string  `json:"date"`
	Day      string  `json:"day"`
	Cells    int     `json:"cells"`
	Failed   int     `json:"failed"`
	Matched  int     `json:"matched"`
	Sources  int     `json:"sources"`
	Cost     float64 `json:"cost"`
}

// Summarize reduces a batch result to its step output
func Summarize(res *services.BatchResult, at time.Time) BatchSummary {
	s := BatchSummary{
		BatchID:  res.BatchID,
		Provider: res.Provider,
		Date:     at.Format("200601"),
		Day:      at.Format("02"),
		Cells:    len(res.Results),
		Failed:   res.Failed,
		Sources:  len(res.Sources),
		Cost:     res.Cost,
	}
	for _, r := range res.Results {
		s.Matched += r.TotalCount()
	}
	return s
}

// RetryPolicy marks errors that a retry cannot fix, or that a retry would
// make worse, as non-retriable. A partially persisted batch would insert its
// written rows a second time for the same day.
func RetryPolicy(err error) error {
	if err == nil {
		return nil
	}
	var (
		configErr      *config.ConfigError
		unsupportedErr *providers.UnsupportedProviderError
		persistErr     *services.PersistError
	)
	switch {
	case errors.As(err, &configErr), errors.As(err, &unsupportedErr):
		return sdkerrors.NoRetryError(err)
	case errors.As(err, &persistErr) && persistErr.Partial():
		return sdkerrors.NoRetryError(err)
	default:
		return err
	}
}

// RunTrackerBatch runs and persists one provider's batch for the requested day
func (p *BatchProcessor) RunTrackerBatch() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "run-tracker-batch",
			Name:    "Run AI Visibility Batch",
			Retries: inngestgo.IntPtr(2),
		},
		inngestgo.EventTrigger(BatchRunEventName, nil),
		func(ctx context.Context, input inngestgo.Input[BatchRunEvent]) (any, error) {
			provider := input.Event.Data.Provider
			at, err := time.Parse(time.RFC3339, input.Event.Data.RequestedAt)
			if err != nil {
				at = time.Now().UTC()
			}

			log := zap.L().With(zap.String("provider", provider), zap.String("triggered_by", input.Event.Data.TriggeredBy))
			log.Info("tracker batch requested", zap.Time("requested_at", at))

			// the batch is memoized once this step succeeds, so a persist retry never re-asks the providers
			res, err := step.Run(ctx, "run-batch", func(ctx context.Context) (*services.BatchResult, error) {
				res, err := p.tracker.RunBatch(ctx, services.BatchRequest{Provider: provider})
				if err != nil {
					return nil, RetryPolicy(err)
				}
				res.Answers = nil
				return res, nil
			})
			if err != nil {
				notify(ctx, p.alerter, "Tracker batch failed", BatchFailureDetail(provider, nil, err))
				return nil, RetryPolicy(fmt.Errorf("step 'run-batch' failed for %s: %w", provider, err))
			}

			summary := Summarize(res, at)
			_, err = step.Run(ctx, "persist", func(ctx context.Context) (int, error) {
				if err := p.tracker.Persist(ctx, res, at); err != nil {
					return 0, RetryPolicy(err)
				}
				return summary.Cells, nil
			})
			if err != nil {
				notify(ctx, p.alerter, "Tracker batch failed to persist", BatchFailureDetail(provider, &summary, err))
				return nil, RetryPolicy(fmt.Errorf("step 'persist' failed for %s: %w", provider, err))
			}

			if summary.Failed > 0 {
				_, _ = step.Run(ctx, "alert-partial-failure", func(ctx context.Context) (bool, error) {
					notify(ctx, p.alerter, "Tracker batch had failed cells", BatchFailureDetail(provider, &summary, nil))
					return true, nil
				})
			}

			p.reports.Invalidate()
			log.Info("tracker batch stored",
				zap.String("batch_id", summary.BatchID),
				zap.Int("cells", summary.Cells),
				zap.Int("failed", summary.Failed),
			)
			return summary, nil
		},
	)
	if err != nil {
		zap.L().Error("failed to create tracker batch function", zap.Error(err))
	}

	return fn
}
