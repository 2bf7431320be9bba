// workflows/monitoring.go
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/services"
)

// VisibilityMonitor flags locations with zero visibility so far this month
func (p *BatchProcessor) VisibilityMonitor() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "tracker-visibility-monitor",
			Name: "Flag Zero Visibility Locations",
		},
		inngestgo.CronTrigger("0 12 * * 1"), // Mondays at noon UTC
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			month := time.Now().UTC().Format("200601")

			report, err := step.Run(ctx, "compute-scores", func(ctx context.Context) (*services.ScoreReport, error) {
				return p.reports.Scores(ctx, services.ScoreQuery{Month: month})
			})
			if err != nil {
				return nil, err
			}

			if n := len(report.ZeroVisibilityLocations); n > 0 {
				zap.L().Warn("locations with zero visibility",
					zap.String("month", month),
					zap.Strings("locations", report.ZeroVisibilityLocations),
				)
				_, _ = step.Run(ctx, "alert-zero-visibility", func(ctx context.Context) (int, error) {
					notify(ctx, p.alerter, "Locations with zero visibility", ZeroVisibilityDetail(month, report))
					return n, nil
				})
			}

			return map[string]interface{}{
				"month":                     month,
				"visibility":                report.Overall.Visibility,
				"platforms":                 len(report.Platforms),
				"zero_visibility_locations": report.ZeroVisibilityLocations,
				"message":                   fmt.Sprintf("%d locations flagged for %s", len(report.ZeroVisibilityLocations), month),
			}, nil
		},
	)
	if err != nil {
		zap.L().Error("failed to create visibility monitor function", zap.Error(err))
	}

	return fn
}
