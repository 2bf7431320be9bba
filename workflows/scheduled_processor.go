// workflows/scheduled_processor.go
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"go.uber.org/zap"

	"github.com/AI-Template-SDK/senso-tracker/internal/config"
	"github.com/AI-Template-SDK/senso-tracker/internal/providers"
)

// BatchRunEventName triggers one provider's daily batch
const BatchRunEventName = "tracker.batch.run"

// BatchRunEvent is the payload of BatchRunEventName
type BatchRunEvent struct {
	Provider    string `json:"provider"`
	RequestedAt string `json:"requested_at"` // RFC3339, fixes the persisted day across retries
	TriggeredBy string `json:"triggered_by"`
}

type ScheduledProcessor struct {
	cfg    *config.Config
	client inngestgo.Client
}

func NewScheduledProcessor(cfg *config.Config) *ScheduledProcessor {
	return &ScheduledProcessor{cfg: cfg}
}

func (p *ScheduledProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// DailyTracker fans one batch event out per configured platform
func (p *ScheduledProcessor) DailyTracker() inngestgo.ServableFunction {
	cron := p.cfg.Inngest.DailyCron
	if cron == "" {
		cron = "0 6 * * *"
	}

	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:   "tracker-daily",
			Name: "Daily AI Visibility Tracker",
		},
		inngestgo.CronTrigger(cron),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			now := time.Now().UTC()

			platforms, err := step.Run(ctx, "resolve-platforms", func(ctx context.Context) ([]string, error) {
				tracking, err := config.LoadTracking(p.cfg.TrackingPath)
				if err != nil {
					return nil, err
				}
				return PlatformsToRun(tracking.AIPlatforms), nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to resolve platforms: %w", err)
			}

			var sent []string
			for _, platform := range platforms {
				// one step per platform so a retry only resends what failed
				_, err := step.Run(ctx, "trigger-batch-"+platform, func(ctx context.Context) (any, error) {
					return p.client.Send(ctx, NewBatchRunEvent(platform, now, "automatic_scheduler"))
				})
				if err != nil {
					zap.L().Warn("failed to send batch event", zap.String("provider", platform), zap.Error(err))
					continue
				}
				sent = append(sent, platform)
			}

			return map[string]interface{}{
				"execution_date": now.Format("2006-01-02"),
				"platforms":      sent,
				"message":        fmt.Sprintf("Triggered %d of %d platform batches", len(sent), len(platforms)),
			}, nil
		},
	)
	if err != nil {
		zap.L().Error("failed to create daily tracker function", zap.Error(err))
	}

	return fn
}

// NewBatchRunEvent builds the event that runs and persists one provider's batch
func NewBatchRunEvent(provider string, now time.Time, triggeredBy string) inngestgo.Event {
	return inngestgo.Event{
		Name: BatchRunEventName,
		Data: map[string]interface{}{
			"provider":     provider,
			"requested_at": now.Format(time.RFC3339),
			"triggered_by": triggeredBy,
		},
	}
}

// PlatformsToRun keeps the supported, de-duplicated platforms in order.
// An empty list means every supported platform.
func PlatformsToRun(configured []string) []string {
	if len(configured) == 0 {
		out := make([]string, len(providers.All))
		for i, id := range providers.All {
			out[i] = id.String()
		}
		return out
	}

	seen := map[providers.ID]bool{}
	var out []string
	for _, raw := range configured {
		id, err := providers.Parse(raw)
		if err != nil {
			zap.L().Warn("skipping unsupported platform", zap.String("provider", raw))
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id.String())
	}
	return out
}
